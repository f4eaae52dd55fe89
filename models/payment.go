package models

// PaymentMode is how the devotee settled the offering.
type PaymentMode string

const (
	PaymentCash          PaymentMode = "CASH"
	PaymentCard          PaymentMode = "CARD"
	PaymentOnlineBanking PaymentMode = "ONLINE_BANKING"
	PaymentEWallet       PaymentMode = "EWALLET"
)

// PaymentModes lists the accepted modes in display order.
var PaymentModes = []PaymentMode{PaymentCash, PaymentCard, PaymentOnlineBanking, PaymentEWallet}

// Valid reports whether m is one of the accepted modes.
func (m PaymentMode) Valid() bool {
	for _, v := range PaymentModes {
		if m == v {
			return true
		}
	}
	return false
}

// Electronic reports whether a processor reference can be issued for m.
func (m PaymentMode) Electronic() bool {
	return m == PaymentCard || m == PaymentOnlineBanking
}
