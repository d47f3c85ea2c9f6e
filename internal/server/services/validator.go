package services

import (
	"github.com/dmitrijs2005/vidtube/internal/shared"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator registers "notblank": the string is non-empty after trimming.
func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return !shared.IsBlank(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}
