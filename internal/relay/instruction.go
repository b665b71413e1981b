package relay

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/shohag/smsrelay/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseInstruction decodes a push data record. Unknown keys are ignored.
func ParseInstruction(data map[string]string) (models.SendInstruction, error) {
	var in models.SendInstruction
	if err := mapstructure.Decode(data, &in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrMalformedInstruction, err)
	}
	if err := validate.Struct(in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrMalformedInstruction, err)
	}
	return in, nil
}
