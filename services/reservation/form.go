package reservation

import (
	"regexp"
	"strings"

	"pagoda/models"
)

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s has the basic local@domain.tld shape.
func ValidEmail(s string) bool {
	return emailShape.MatchString(s)
}

// ValidateForm checks the booking form the way the page does before any network call and
// returns the normalised devotee block and offering period.
func ValidateForm(form models.BookingForm) (models.DevoteeInput, models.OfferingPeriod, error) {
	devotee := form.Devotee()
	period := form.Period()

	switch {
	case strings.TrimSpace(form.UnitReference) == "":
		return devotee, period, &FieldError{Field: "unit_id", Message: "No light unit selected"}
	case form.Amount <= 0:
		return devotee, period, &FieldError{Field: "amount", Message: "Amount must be greater than zero"}
	case devotee.Name == "":
		return devotee, period, &FieldError{Field: "devotee_name", Message: "Devotee name is required"}
	case devotee.Contact == "":
		return devotee, period, &FieldError{Field: "devotee_phone", Message: "Contact number is required"}
	case devotee.Email != "" && !ValidEmail(devotee.Email):
		return devotee, period, &FieldError{Field: "devotee_email", Message: "Please enter a valid email address"}
	case period.From.IsZero():
		return devotee, period, &FieldError{Field: "offering_date_from", Message: "Offering start date is required"}
	case period.To.IsZero():
		return devotee, period, &FieldError{Field: "offering_date_to", Message: "Offering end date is required"}
	case !period.Valid():
		return devotee, period, &FieldError{
			Field:   "offering_date_to",
			Message: "Offering end date must be on or after the start date",
			Cause:   ErrInvalidOfferingPeriod,
		}
	}
	return devotee, period, nil
}
