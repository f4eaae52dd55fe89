package models

// ReceiptPayload is queued after a confirmed booking so the devotee's device gets a receipt push.
type ReceiptPayload struct {
	DeviceToken   string  `json:"deviceToken"`
	BookingID     string  `json:"bookingId"`
	BookingNumber string  `json:"bookingNumber"`
	UnitLabel     string  `json:"unitLabel,omitempty"` // optional
	DevoteeName   string  `json:"devoteeName,omitempty"`
	Amount        float64 `json:"amount"`
	PaymentMode   string  `json:"paymentMode"`
}
