package assistant

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// BookingRequest is a therapist booking submission. Validation is all-or-
// nothing; a failed booking stores no partial record.
type BookingRequest struct {
	Name        string   `json:"name" validate:"required"`
	Email       string   `json:"email" validate:"required,email"`
	Phone       string   `json:"phone" validate:"required,phone_digits"`
	Therapist   string   `json:"therapist" validate:"required"`
	Date        string   `json:"appointment_date" validate:"required"`
	Time        string   `json:"appointment_time" validate:"required"`
	Modality    string   `json:"appointment_type" validate:"required,oneof=in-person video phone"`
	Specialties []string `json:"specialties"`
	Reason      string   `json:"reason"`
}

func newBookingValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Phone numbers arrive in whatever punctuation the user typed; only the
	// digit count is checked. "555-1234" fails, "555-123-4567" passes.
	_ = v.RegisterValidation("phone_digits", func(fl validator.FieldLevel) bool {
		digits := 0
		for _, r := range fl.Field().String() {
			if unicode.IsDigit(r) {
				digits++
			}
		}
		return digits >= 10
	})
	return v
}

func validationFields(err error) []string {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return []string{"request"}
	}
	fields := make([]string, 0, len(invalid))
	for _, fe := range invalid {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return fields
}

func confirmationMessage(req BookingRequest) string {
	return fmt.Sprintf(`Your appointment has been scheduled successfully!

Therapist: %s
Date: %s
Time: %s
Type: %s Session

We'll send a confirmation to %s with further details. You'll receive a reminder 24 hours before your appointment.

Thank you for taking this important step for your mental health.`,
		req.Therapist, req.Date, req.Time, req.Modality, req.Email)
}
