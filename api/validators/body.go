package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/artisancrate/billing-engine/pkg/enums"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
)

// MaxBodyBytes caps every decoded request body.
const MaxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	enumTag(v, "payment_method", func(s string) bool { return enums.PaymentMethodType(s).IsValid() })
	enumTag(v, "order_status", func(s string) bool { return enums.OrderStatus(s).IsValid() })
	return v
}

func enumTag(v *validator.Validate, tag string, valid func(string) bool) {
	if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return valid(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// DecodeJSONBody decodes one JSON object into dest, refusing unknown fields,
// and runs its validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	return decodeJSON(r, dest, true)
}

// DecodeJSONBodyLenient is DecodeJSONBody for third-party payloads that may
// grow fields we do not model.
func DecodeJSONBodyLenient(r *http.Request, dest any) error {
	return decodeJSON(r, dest, false)
}

func decodeJSON(r *http.Request, dest any, strict bool) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	defer io.Copy(io.Discard, body)

	dec := json.NewDecoder(body)
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dest); err != nil {
		return bodyError(err)
	}
	if dec.More() {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must hold a single JSON object")
	}
	if err := validate.Struct(dest); err != nil {
		return fieldErrors(err)
	}
	return nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request body too large").
			WithDetails(map[string]any{"limit_bytes": tooLarge.Limit})
	case errors.Is(err, io.EOF):
		return pkgerrors.New(pkgerrors.CodeValidation, "request body is empty")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]any{"error": err.Error()})
	}
}

var tagMessages = map[string]string{
	"required":       "is required",
	"email":          "must be a valid email",
	"uuid":           "must be a valid uuid",
	"payment_method": "must be manual_payment_link or credit_card_token",
	"order_status":   "must be a known order status",
}

func fieldErrors(err error) error {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(invalid))
	for _, fe := range invalid {
		details[fe.Field()] = fieldMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := tagMessages[fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}
