package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bmwdex/bmwdex/pkg/bmwcode"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldErrors maps a failing field name to its sentinel, per payload kind.
var (
	carFieldErrors = map[string]error{
		"make":   ErrMissingMake,
		"model":  ErrMissingModel,
		"models": ErrNoGenerations,
	}
	engineFieldErrors = map[string]error{
		"model": ErrMissingModel,
		"data":  ErrNoEngines,
	}
)

// ValidateCarPayload requires make, model and a generation list. An empty
// list is accepted; a missing one is not.
func ValidateCarPayload(p CarPayload) error {
	return check(p, carFieldErrors)
}

// ValidateEnginePayload requires model and a data list. Rows with blank
// engine codes pass here and are skipped by the sync pipeline.
func ValidateEnginePayload(p EnginePayload) error {
	return check(p, engineFieldErrors)
}

// ValidateEngineCode gates the decoder.
func ValidateEngineCode(code string) error {
	if !bmwcode.IsValidEngineCode(code) {
		return NewValidationError("engine_code", code, ErrInvalidEngineCode)
	}
	return nil
}

func check(v any, sentinels map[string]error) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate: %w", err)
	}
	// Report the first failure only, in struct order.
	fe := verrs[0]
	wrapped, ok := sentinels[fe.Field()]
	if !ok {
		wrapped = ErrInvalidPayload
	}
	return NewValidationError(fe.Field(), fmt.Sprint(fe.Value()), wrapped)
}
