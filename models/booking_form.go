package models

import (
	"strings"
	"time"
)

// BookingForm is the typed state of the booking form. Hosts keep it in sync with
// whatever input surface they render, so validation never depends on a DOM.
type BookingForm struct {
	UnitReference string  `json:"unit_id"`
	Amount        float64 `json:"amount"`
	DevoteeName   string  `json:"devotee_name"`
	DevoteeNRIC   string  `json:"devotee_nric,omitempty"`
	DevoteePhone  string  `json:"devotee_phone"`
	DevoteeEmail  string  `json:"devotee_email,omitempty"`
	DateFrom      string  `json:"offering_date_from"`
	DateTo        string  `json:"offering_date_to"`
}

// Devotee returns the trimmed personal information block.
func (f BookingForm) Devotee() DevoteeInput {
	return DevoteeInput{
		Name:    strings.TrimSpace(f.DevoteeName),
		NRIC:    strings.TrimSpace(f.DevoteeNRIC),
		Contact: strings.TrimSpace(f.DevoteePhone),
		Email:   strings.TrimSpace(f.DevoteeEmail),
	}
}

// Period parses the date inputs. Unparseable inputs leave the matching bound zero.
func (f BookingForm) Period() OfferingPeriod {
	var p OfferingPeriod
	if t, err := time.Parse(DateLayout, strings.TrimSpace(f.DateFrom)); err == nil {
		p.From = t
	}
	if t, err := time.Parse(DateLayout, strings.TrimSpace(f.DateTo)); err == nil {
		p.To = t
	}
	return p
}

// OpenPageRequest starts a booking page for a unit picked in the selection step.
type OpenPageRequest struct {
	UnitReference string  `json:"unit_id" binding:"required"`
	UnitLabel     string  `json:"unit_label,omitempty"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	DeviceToken   string  `json:"device_token,omitempty"`
}
