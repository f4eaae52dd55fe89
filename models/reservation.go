package models

import (
	"fmt"
	"time"
)

// SessionState is the lifecycle position of a single booking attempt.
type SessionState string

const (
	StateIdle           SessionState = "idle"
	StateReserving      SessionState = "reserving"
	StateReserved       SessionState = "reserved"
	StatePaymentPending SessionState = "payment_pending"
	StateConfirmed      SessionState = "confirmed"
	StateExpired        SessionState = "expired"
	StateCancelled      SessionState = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s SessionState) Terminal() bool {
	switch s {
	case StateConfirmed, StateExpired, StateCancelled:
		return true
	}
	return false
}

// Counting reports whether the countdown runs in s.
func (s SessionState) Counting() bool {
	return s == StateReserved || s == StatePaymentPending
}

// DateLayout is the wire and form format of offering dates.
const DateLayout = "2006-01-02"

// DevoteeInput is the free-form personal information typed into the booking form.
type DevoteeInput struct {
	Name    string `json:"devotee_name" bson:"devoteeName"`
	NRIC    string `json:"devotee_nric,omitempty" bson:"devoteeNric,omitempty"`
	Contact string `json:"devotee_phone" bson:"devoteePhone"`
	Email   string `json:"devotee_email,omitempty" bson:"devoteeEmail,omitempty"`
}

// OfferingPeriod is the inclusive date range the light is offered for.
type OfferingPeriod struct {
	From time.Time `json:"offering_date_from" bson:"offeringDateFrom"`
	To   time.Time `json:"offering_date_to" bson:"offeringDateTo"`
}

const secondsPerDay = 24 * 60 * 60

// Days returns the inclusive number of whole days in the period.
// A range whose end precedes its start yields a value below 1.
func (p OfferingPeriod) Days() int {
	from := time.Date(p.From.Year(), p.From.Month(), p.From.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(p.To.Year(), p.To.Month(), p.To.Day(), 0, 0, 0, 0, time.UTC)
	return int((to.Unix()-from.Unix())/secondsPerDay) + 1
}

// Valid reports whether the period covers at least one day.
func (p OfferingPeriod) Valid() bool {
	return !p.From.IsZero() && !p.To.IsZero() && p.Days() >= 1
}

// Label is the human-readable duration shown next to the date pickers.
func (p OfferingPeriod) Label() string {
	if p.From.IsZero() || p.To.IsZero() {
		return ""
	}
	days := p.Days()
	switch {
	case days < 1:
		return "Invalid date range"
	case days == 1:
		return "1 day"
	default:
		return fmt.Sprintf("%d days", days)
	}
}

// ReservationSession is the client-held state of one in-progress light booking.
type ReservationSession struct {
	BookingID     string         `json:"booking_id,omitempty"`
	BookingNumber string         `json:"booking_number,omitempty"`
	ReservedUntil time.Time      `json:"reserved_until,omitempty"`
	UnitReference string         `json:"unit_id,omitempty"`
	Amount        float64        `json:"amount,omitempty"`
	Devotee       DevoteeInput   `json:"devotee"`
	Period        OfferingPeriod `json:"period"`
	State         SessionState   `json:"state"`
}

// SessionOutcome is emitted once when a session reaches a terminal state.
type SessionOutcome struct {
	ID            string       `bson:"id" json:"id"`
	PageID        string       `bson:"pageId" json:"page_id"`
	BookingID     string       `bson:"bookingId,omitempty" json:"booking_id,omitempty"`
	BookingNumber string       `bson:"bookingNumber,omitempty" json:"booking_number,omitempty"`
	UnitReference string       `bson:"unitId" json:"unit_id"`
	Amount        float64      `bson:"amount" json:"amount"`
	DevoteeName   string       `bson:"devoteeName,omitempty" json:"devotee_name,omitempty"`
	PaymentMode   PaymentMode  `bson:"paymentMode,omitempty" json:"payment_mode,omitempty"`
	State         SessionState `bson:"state" json:"state"`
	ReservedUntil time.Time    `bson:"reservedUntil,omitempty" json:"reserved_until,omitempty"`
	RecordedAt    time.Time    `bson:"recordedAt" json:"recorded_at"`
}
