package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shohag/smsrelay/internal/models"
)

func TestParseInstruction(t *testing.T) {
	in, err := ParseInstruction(map[string]string{
		"action":     "send_sms",
		"message_id": "m1",
		"recipient":  "+8801700000000",
		"message":    "hello",
		"extra":      "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SendInstruction{
		Action:    models.ActionSendSMS,
		MessageID: "m1",
		Recipient: "+8801700000000",
		Body:      "hello",
	}, in)
}

func TestParseInstruction_Malformed(t *testing.T) {
	valid := func() map[string]string {
		return map[string]string{
			"action":     "send_sms",
			"message_id": "m1",
			"recipient":  "+100",
			"message":    "hi",
		}
	}

	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"wrong action", func(m map[string]string) { m["action"] = "ping" }},
		{"missing action", func(m map[string]string) { delete(m, "action") }},
		{"missing message id", func(m map[string]string) { delete(m, "message_id") }},
		{"missing recipient", func(m map[string]string) { delete(m, "recipient") }},
		{"missing body", func(m map[string]string) { delete(m, "message") }},
		{"empty recipient", func(m map[string]string) { m["recipient"] = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := valid()
			tt.mutate(data)
			_, err := ParseInstruction(data)
			assert.ErrorIs(t, err, ErrMalformedInstruction)
		})
	}
}
