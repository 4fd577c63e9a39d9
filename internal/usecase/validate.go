package usecase

import (
	"errors"
	"fmt"

	"github.com/ErlanBelekov/tourbook/internal/apperr"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// fieldMessages holds the user-facing text per "Field.tag".
var fieldMessages = map[string]string{
	"Name.required":            "A user must have a name",
	"Name.max":                 "A name must have at most 64 characters",
	"Email.required":           "Please provide your email",
	"Email.email":              "Please provide a valid email",
	"Password.required":        "Please provide a password",
	"Password.min":             "A password must have at least 8 characters",
	"PasswordConfirm.required": "Please confirm your password",
	"PasswordConfirm.eqfield":  "Passwords are not the same",
	"Role.oneof":               "Role is either: user, guide, lead-guide, admin",
}

// userSchema is the validated shape of a user record before it is saved.
type userSchema struct {
	Name  string `validate:"required,max=64"`
	Email string `validate:"required,email"`
	Role  string `validate:"oneof=user guide lead-guide admin"`
}

type signupSchema struct {
	Name            string `validate:"required,max=64"`
	Email           string `validate:"required,email"`
	Password        string `validate:"required,min=8"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
}

// passwordSchema validates a password change on its own.
type passwordSchema struct {
	Password        string `validate:"required,min=8"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	return FromValidator(verrs)
}

// FromValidator converts validator failures into an apperr.ValidationError
// with user-facing messages.
func FromValidator(verrs validator.ValidationErrors) *apperr.ValidationError {
	out := &apperr.ValidationError{Err: verrs}
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag())
		}
		out.Violations = append(out.Violations, apperr.Violation{Field: fe.Field(), Message: msg})
	}
	return out
}
