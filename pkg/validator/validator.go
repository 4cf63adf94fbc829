package validator

import (
	"github.com/go-playground/validator/v10"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// CustomValidator implements echo.Validator using go-playground/validator
type CustomValidator struct {
	v *validator.Validate
}

// New creates a new CustomValidator instance with the project's custom tags
func New() *CustomValidator {
	v := validator.New()
	// platform accepts teams, zoom or gmeet in any case
	_ = v.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
		_, ok := entities.ParsePlatform(fl.Field().String())
		return ok
	})
	return &CustomValidator{v: v}
}

// Validate performs struct validation
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}
