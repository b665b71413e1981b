package models

import "fmt"

type Status string

const (
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
)

// StatusReport is the outbound notification sent to the controller.
type StatusReport struct {
	MessageID   string `json:"message_id"`
	Status      Status `json:"status"`
	DeviceToken string `json:"device_token"`
	Error       string `json:"error,omitempty"`
}

type Phase string

const (
	PhaseSent      Phase = "sent"
	PhaseDelivered Phase = "delivered"
)

// Signal is a completion event raised by the telephony layer for one phase
// of a dispatched message.
type Signal struct {
	MessageID string `json:"message_id"`
	Phase     Phase  `json:"phase"`
	Code      int    `json:"code"`
}

// Telephony result codes. Anything other than ResultOK is a failure.
const (
	ResultOK             = 0
	ResultGenericFailure = 1
	ResultRadioOff       = 2
	ResultNullPDU        = 3
	ResultNoService      = 4
)

func ResultName(code int) string {
	switch code {
	case ResultOK:
		return "ok"
	case ResultGenericFailure:
		return "generic failure"
	case ResultRadioOff:
		return "radio off"
	case ResultNullPDU:
		return "null pdu"
	case ResultNoService:
		return "no service"
	default:
		return "unknown"
	}
}

// SentOutcome maps a sent-phase result code to a status and error text.
func SentOutcome(code int) (Status, string) {
	if code == ResultOK {
		return StatusSent, ""
	}
	return StatusFailed, fmt.Sprintf("SMS send failed (code: %d, %s)", code, ResultName(code))
}

// DeliveredOutcome maps a delivered-phase result code to a status and error text.
func DeliveredOutcome(code int) (Status, string) {
	if code == ResultOK {
		return StatusDelivered, ""
	}
	return StatusFailed, fmt.Sprintf("SMS delivery failed (code: %d, %s)", code, ResultName(code))
}
