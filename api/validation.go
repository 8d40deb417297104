package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/warp/actus-engine/generic"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// newValidator returns a validator with the API's custom tags registered.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("timepoint", validateTimePoint)
	_ = v.RegisterValidation("decimal", validateDecimal)
	return v
}

func validateTimePoint(fl validator.FieldLevel) bool {
	tp, err := generic.ParseTimePoint(fl.Field().String())
	return err == nil && !tp.IsNull()
}

func validateDecimal(fl validator.FieldLevel) bool {
	n, err := generic.ParseNumber(fl.Field().String())
	return err == nil && !n.IsNull()
}

// errInvalidRequest marks request bodies that failed decoding or tag checks.
var errInvalidRequest = errors.New("invalid request")

// decodeAndValidate reads one JSON object from the body into dst and runs the
// struct's validate tags.
func (h *Handler) decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errInvalidRequest, err)
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", errInvalidRequest, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", errInvalidRequest, err)
	}
	return nil
}

// parseTime parses a field already checked by the timepoint tag.
func parseTime(s string) generic.TimePoint {
	tp, _ := generic.ParseTimePoint(s)
	return tp
}
