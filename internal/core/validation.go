package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CreateProductInput carries the fields accepted when creating a product.
type CreateProductInput struct {
	Name        string `validate:"required,min=3"`
	Description string
	Price       decimal.Decimal `validate:"-"`
	Stock       int             `validate:"min=0"`
}

// CreateCustomerInput carries the fields accepted when creating a customer.
type CreateCustomerInput struct {
	FullName    string  `validate:"required,min=3"`
	PhoneNumber *string `validate:"omitempty,phone"`
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// phonePattern accepts digits only, 10 to 15 of them, with an optional
// leading plus.
var phonePattern = regexp.MustCompile(`^\+?\d{10,15}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

func firstValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return ValidationError{Field: field, Message: "is required"}
	case "min":
		return ValidationError{Field: field, Message: fmt.Sprintf("must be at least %s", fe.Param())}
	case "phone":
		return ValidationError{Field: field, Message: "must be 10 to 15 digits with an optional leading +"}
	default:
		return ValidationError{Field: field, Message: fmt.Sprintf("failed %s constraint", fe.Tag())}
	}
}

func validateProductInput(input CreateProductInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if err := firstValidationError(validate.Struct(input)); err != nil {
		return err
	}
	if !input.Price.IsPositive() {
		return ValidationError{Field: "price", Message: "must be greater than zero"}
	}
	return nil
}

func validateCustomerInput(input CreateCustomerInput) error {
	input.FullName = strings.TrimSpace(input.FullName)
	input.PhoneNumber = normalizePhone(input.PhoneNumber)
	return firstValidationError(validate.Struct(input))
}

// normalizePhone strips spaces and returns nil for empty values so the
// derived field is stored canonically.
func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	trimmed := strings.ReplaceAll(strings.TrimSpace(*phone), " ", "")
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
