package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/soaringjerry/satisfacao/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct tags and reports failures as a validation error naming each field.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return models.NewValidationError(err.Error())
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return models.NewValidationError("invalid " + strings.Join(fields, ", "))
}
