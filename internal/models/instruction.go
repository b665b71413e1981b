package models

// ActionSendSMS is the only instruction action the relay acts on.
const ActionSendSMS = "send_sms"

// SendInstruction is a decoded push record asking the device to send one SMS.
type SendInstruction struct {
	Action    string `mapstructure:"action" validate:"required,eq=send_sms" json:"action"`
	MessageID string `mapstructure:"message_id" validate:"required" json:"message_id"`
	Recipient string `mapstructure:"recipient" validate:"required" json:"recipient"`
	Body      string `mapstructure:"message" validate:"required" json:"message"`
}
