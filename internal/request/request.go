// Package request decodes and validates HTTP request bodies.
package request

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/pointvest/pointvest/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Bind parses the JSON body into dst and runs its validate tags.
func Bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.Validation("malformed body: %v", err)
	}
	return Validate(dst)
}

// Validate runs the validate tags of v and folds failures into one
// ErrValidation.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return apperr.Validation("%v", err)
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, describe(fe))
	}
	return apperr.Validation("%s", strings.Join(msgs, ", "))
}

// Amount parses a decimal string already checked with the numeric tag.
func Amount(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, apperr.Validation("field %s is not a valid amount", field)
	}
	return d, nil
}

func describe(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("field %s is a required field", fe.Field())
	case "numeric":
		return fmt.Sprintf("field %s can contain only numbers", fe.Field())
	case "min":
		return fmt.Sprintf("field %s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("field %s must be at most %s characters", fe.Field(), fe.Param())
	case "excludesall":
		return fmt.Sprintf("field %s contains forbidden characters", fe.Field())
	default:
		return fmt.Sprintf("field %s is not valid", fe.Field())
	}
}
