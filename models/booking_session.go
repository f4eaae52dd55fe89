package models

import "time"

// Destination is where a page asks its host to navigate.
type Destination string

const (
	DestinationNone         Destination = ""
	DestinationBack         Destination = "back"
	DestinationBookingsList Destination = "bookings_list"
)

// MessageLevel classifies a notice shown to the user.
type MessageLevel string

const (
	MessageInfo    MessageLevel = "info"
	MessageSuccess MessageLevel = "success"
	MessageWarning MessageLevel = "warning"
	MessageError   MessageLevel = "error"
)

// PageMessage is one notice rendered on the page.
type PageMessage struct {
	Level MessageLevel `json:"level"`
	Text  string       `json:"text"`
	At    time.Time    `json:"at"`
}

// PageSnapshot holds everything a booking page currently displays.
type PageSnapshot struct {
	PageID         string        `json:"page_id"`
	UnitLabel      string        `json:"unit_label,omitempty"`
	Form           BookingForm   `json:"form"`
	DurationLabel  string        `json:"duration_label,omitempty"`
	FormDisabled   bool          `json:"form_disabled"`
	PaymentVisible bool          `json:"payment_visible"`
	PaymentModes   []PaymentMode `json:"payment_modes,omitempty"`
	BookingNumber  string        `json:"booking_number,omitempty"`
	Countdown      string        `json:"countdown,omitempty"`
	Urgent         bool          `json:"urgent"`
	State          SessionState  `json:"state"`
	Messages       []PageMessage `json:"messages,omitempty"`
	NavigateTo     Destination   `json:"navigate_to,omitempty"`
	Closed         bool          `json:"closed"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Version        int64         `json:"version"`
}
