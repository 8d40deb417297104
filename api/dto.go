/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal contract model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Contracts:
    DeployRequest, ContractDTO, ContractDetailDTO, EventRecordDTO, EventDTO

  Operations:
    ProgressRequest, CreditEventRequest, TickRequest

  Ledger:
    TransferDTO, BalanceDTO

  Oracle:
    ObservationRequest, ObservationDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry validator/v10 tags, checked by decodeAndValidate in
  handlers.go. The custom "timepoint" and "decimal" tags are registered in
  validation.go. Contract terms are validated by actus.Validate, not here.

SEE ALSO:
  - handlers.go: Uses these types
  - validation.go: Custom tags
*/
package api

import (
	"encoding/json"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/generic"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// DeployRequest deploys (or projects) contract terms at DeployedAt.
type DeployRequest struct {
	DeployedAt string          `json:"deployed_at" validate:"required,timepoint"`
	Terms      json.RawMessage `json:"terms" validate:"required"`
}

// ProgressRequest applies a contract's events due at or before EventTime.
type ProgressRequest struct {
	EventTime string `json:"event_time" validate:"required,timepoint"`
}

// CreditEventRequest injects a credit event.
type CreditEventRequest struct {
	At string `json:"at" validate:"required,timepoint"`
}

// TickRequest runs one scheduler tick. An empty Now uses the wall clock.
type TickRequest struct {
	Now string `json:"now" validate:"omitempty,timepoint"`
}

// ObservationRequest records one market observation.
type ObservationRequest struct {
	MarketObjectCode string `json:"market_object_code" validate:"required,max=64"`
	Time             string `json:"time" validate:"required,timepoint"`
	Value            string `json:"value" validate:"required,decimal"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// EventDTO is one scheduled event.
type EventDTO struct {
	Time string `json:"time"`
	Type string `json:"type"`
}

// ContractDTO summarizes a deployed contract.
type ContractDTO struct {
	ID             string    `json:"id"`
	ContractType   string    `json:"contract_type"`
	ContractRole   string    `json:"contract_role"`
	CreatorID      string    `json:"creator_id"`
	CounterpartyID string    `json:"counterparty_id"`
	Currency       string    `json:"currency"`
	DeployedAt     string    `json:"deployed_at"`
	Applied        int       `json:"applied"`
	Remaining      int       `json:"remaining"`
	Completed      bool      `json:"completed"`
	NextEvent      *EventDTO `json:"next_event,omitempty"`
}

// ContractDetailDTO adds terms, running state and pending events.
type ContractDetailDTO struct {
	ContractDTO
	Terms   actus.ContractTerms `json:"terms"`
	State   actus.RunningState  `json:"state"`
	Pending []EventDTO          `json:"pending"`
}

// EventRecordDTO is one applied (or projected) event.
type EventRecordDTO struct {
	Index      int                `json:"index"`
	Time       string             `json:"time"`
	Type       string             `json:"type"`
	Payoff     string             `json:"payoff"`
	TransferID string             `json:"transfer_id,omitempty"`
	State      actus.RunningState `json:"state"`
}

// TransferDTO is one ledger transfer.
type TransferDTO struct {
	ID             string `json:"id"`
	IdempotencyKey string `json:"idempotency_key"`
	ContractID     string `json:"contract_id"`
	EventIndex     int    `json:"event_index"`
	EventType      string `json:"event_type"`
	At             string `json:"at"`
	From           string `json:"from"`
	To             string `json:"to"`
	AssetID        string `json:"asset_id"`
	Amount         string `json:"amount"`
}

// BalanceDTO is a party's net position in one asset.
type BalanceDTO struct {
	Party     string `json:"party"`
	AssetID   string `json:"asset_id"`
	Balance   string `json:"balance"`
	Transfers int    `json:"transfers"`
}

// ObservationDTO is one market observation.
type ObservationDTO struct {
	MarketObjectCode string `json:"market_object_code"`
	Time             string `json:"time"`
	Value            string `json:"value"`
}

// FailureDTO is an event left pending by a tick.
type FailureDTO struct {
	ContractID string `json:"contract_id"`
	Index      int    `json:"index"`
	Event      string `json:"event"`
	Error      string `json:"error"`
	Retryable  bool   `json:"retryable"`
}

// TickReportDTO is the outcome of one tick.
type TickReportDTO struct {
	Now        string       `json:"now"`
	Skipped    bool         `json:"skipped"`
	Contracts  int          `json:"contracts"`
	Applied    int          `json:"applied"`
	Completed  []string     `json:"completed"`
	Failures   []FailureDTO `json:"failures"`
	DurationMS int64        `json:"duration_ms"`
}

// SchedulerStatusDTO combines the heap snapshot with the cron driver.
type SchedulerStatusDTO struct {
	Live      int           `json:"live"`
	NextEvent *EventDTO     `json:"next_event,omitempty"`
	NextID    string        `json:"next_contract_id,omitempty"`
	LastTick  string        `json:"last_tick"`
	Driver    *DriverStatus `json:"driver,omitempty"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string                   `json:"error"`
	Details string                   `json:"details,omitempty"`
	Codes   []string                 `json:"codes,omitempty"`
	Fields  []*actus.ValidationError `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEventDTO(ev generic.Event) EventDTO {
	return EventDTO{Time: ev.Time.String(), Type: ev.Type.String()}
}

func toContractDTO(cs *actus.ContractState) ContractDTO {
	dto := ContractDTO{
		ID:             string(cs.ID),
		ContractType:   string(cs.Terms.ContractType),
		ContractRole:   string(cs.Terms.ContractRole),
		CreatorID:      cs.Terms.CreatorID,
		CounterpartyID: cs.Terms.CounterpartyID,
		Currency:       cs.Terms.Currency,
		DeployedAt:     cs.DeployedAt.String(),
		Applied:        cs.NextEvent,
		Remaining:      len(cs.Schedule) - cs.NextEvent,
		Completed:      cs.Done(),
	}
	if ev, ok := cs.Next(); ok {
		e := toEventDTO(ev)
		dto.NextEvent = &e
	}
	return dto
}

func toContractDetailDTO(cs *actus.ContractState) ContractDetailDTO {
	pending := cs.Pending()
	events := make([]EventDTO, len(pending))
	for i, ev := range pending {
		events[i] = toEventDTO(ev)
	}
	return ContractDetailDTO{
		ContractDTO: toContractDTO(cs),
		Terms:       cs.Terms,
		State:       cs.State,
		Pending:     events,
	}
}

func toEventRecordDTOs(records []actus.EventRecord) []EventRecordDTO {
	dtos := make([]EventRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = EventRecordDTO{
			Index:      rec.Index,
			Time:       rec.Event.Time.String(),
			Type:       rec.Event.Type.String(),
			Payoff:     rec.Payoff.String(),
			TransferID: rec.TransferID,
			State:      rec.State,
		}
	}
	return dtos
}

func toTransferDTOs(transfers []actus.Transfer) []TransferDTO {
	dtos := make([]TransferDTO, len(transfers))
	for i, tr := range transfers {
		dtos[i] = TransferDTO{
			ID:             tr.ID,
			IdempotencyKey: tr.IdempotencyKey,
			ContractID:     string(tr.ContractID),
			EventIndex:     tr.EventIndex,
			EventType:      tr.EventType.String(),
			At:             tr.At.String(),
			From:           tr.From,
			To:             tr.To,
			AssetID:        tr.AssetID,
			Amount:         tr.Amount.String(),
		}
	}
	return dtos
}

func toObservationDTOs(obs []actus.Observation) []ObservationDTO {
	dtos := make([]ObservationDTO, len(obs))
	for i, o := range obs {
		dtos[i] = ObservationDTO{
			MarketObjectCode: o.MarketObjectCode,
			Time:             o.Time.String(),
			Value:            o.Value.String(),
		}
	}
	return dtos
}

func toTickReportDTO(r actus.TickReport) TickReportDTO {
	dto := TickReportDTO{
		Now:        r.Now.String(),
		Skipped:    r.Skipped,
		Contracts:  r.Contracts,
		Applied:    r.Applied,
		Completed:  make([]string, len(r.Completed)),
		Failures:   make([]FailureDTO, len(r.Failures)),
		DurationMS: r.Duration.Milliseconds(),
	}
	for i, id := range r.Completed {
		dto.Completed[i] = string(id)
	}
	for i, f := range r.Failures {
		dto.Failures[i] = FailureDTO{
			ContractID: string(f.ContractID),
			Index:      f.Index,
			Event:      f.Event.String(),
			Error:      f.Err.Error(),
			Retryable:  generic.IsRetryable(f.Err),
		}
	}
	return dto
}
