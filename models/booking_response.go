// models/booking_response.go
package models

import (
	"encoding/json"
	"time"
)

// APIEnvelope is the common response shape of the booking backend.
type APIEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ReserveRequest is the body of a reservation call.
type ReserveRequest struct {
	UnitID           string  `json:"unit_id"`
	DevoteeName      string  `json:"devotee_name"`
	DevoteeNRIC      string  `json:"devotee_nric,omitempty"`
	DevoteePhone     string  `json:"devotee_phone"`
	DevoteeEmail     string  `json:"devotee_email,omitempty"`
	OfferingDateFrom string  `json:"offering_date_from"`
	OfferingDateTo   string  `json:"offering_date_to"`
	Amount           float64 `json:"amount"`
}

// ReservedBooking identifies the booking the backend created on reservation.
type ReservedBooking struct {
	BookingID     string `json:"booking_id"`
	BookingNumber string `json:"booking_number"`
}

// Reservation is the data block of a successful reservation.
type Reservation struct {
	Booking       ReservedBooking `json:"booking"`
	ReservedUntil time.Time       `json:"reserved_until"`
}

// ConfirmRequest is the body of a payment confirmation call.
type ConfirmRequest struct {
	PaymentMode      PaymentMode `json:"payment_mode"`
	PaymentReference string      `json:"payment_reference,omitempty"`
}
