package notification

import (
	"context"
	"fmt"

	"pagoda/models"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// ReceiptNotifier delivers a booking receipt to the devotee's device.
type ReceiptNotifier interface {
	SendReceipt(ctx context.Context, receipt models.ReceiptPayload) error
}

// MessageSender is the part of the FCM client used here.
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushService is the FCM implementation of ReceiptNotifier.
type PushService struct {
	sender MessageSender
	logger *zap.Logger
}

func NewPushService(sender MessageSender, logger *zap.Logger) (*PushService, error) {
	if sender == nil {
		return nil, fmt.Errorf("notification service initialization error: message sender is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushService{sender: sender, logger: logger}, nil
}

// SendReceipt pushes the confirmation to the device token captured when the page opened.
func (s *PushService) SendReceipt(ctx context.Context, receipt models.ReceiptPayload) error {
	if receipt.DeviceToken == "" {
		return fmt.Errorf("SendReceipt: booking %s has no device token", receipt.BookingID)
	}

	title := "Light offering confirmed 🪔"
	body := fmt.Sprintf("Booking %s is confirmed. Amount paid: %.2f (%s).",
		receipt.BookingNumber, receipt.Amount, receipt.PaymentMode)
	if receipt.UnitLabel != "" {
		body = fmt.Sprintf("Booking %s for %s is confirmed. Amount paid: %.2f (%s).",
			receipt.BookingNumber, receipt.UnitLabel, receipt.Amount, receipt.PaymentMode)
	}

	msg := &messaging.Message{
		Token: receipt.DeviceToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"type":          "booking_receipt",
			"bookingId":     receipt.BookingID,
			"bookingNumber": receipt.BookingNumber,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	id, err := s.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("SendReceipt: failed to send FCM message: %w", err)
	}

	s.logger.Info("receipt push sent", zap.String("booking_id", receipt.BookingID), zap.String("message_id", id))
	return nil
}
