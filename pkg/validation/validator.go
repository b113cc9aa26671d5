package validation

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
	ginOnce      sync.Once
)

// Get returns the shared validator. It reads the same `binding` tags gin does.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.SetTagName("binding")
		_ = validate.RegisterValidation("rate_mode", validateRateMode)
	})
	return validate
}

// RegisterGinValidators installs the custom tags on gin's binding validator.
// Must run before the first request binds a struct using them.
func RegisterGinValidators() {
	ginOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("rate_mode", validateRateMode)
		}
	})
}

// ValidateStruct validates s and converts field errors into a ValidationError
func ValidateStruct(s interface{}) error {
	return FromBindError(Get().Struct(s))
}

// FromBindError converts validator field errors into a ValidationError and
// returns any other error unchanged
func FromBindError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return NewValidationError(fieldErrs)
	}
	return err
}

func validateRateMode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "day", "night":
		return true
	}
	return false
}
