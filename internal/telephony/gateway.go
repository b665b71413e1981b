package telephony

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/shohag/smsrelay/internal/config"
)

type sendRequest struct {
	MessageID string `json:"message_id"`
	To        string `json:"to"`
	Text      string `json:"text"`
}

type gatewayError struct {
	Error string `json:"error"`
}

// Gateway hands sends to an external modem gateway over HTTP. The gateway
// reports completion through the ingress telephony callbacks.
type Gateway struct {
	client    *resty.Client
	url       string
	permitted bool
	log       zerolog.Logger
}

func NewGateway(cfg config.GatewayConfig, permitted bool, log zerolog.Logger) (*Gateway, error) {
	if cfg.URL == "" {
		return nil, errors.New("telephony.gateway.url is required for the gateway driver")
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "smsrelay/1.0")

	return &Gateway{
		client:    client,
		url:       strings.TrimRight(cfg.URL, "/") + "/send",
		permitted: permitted,
		log:       log.With().Str("component", "gateway").Logger(),
	}, nil
}

func (g *Gateway) SendPermitted() bool { return g.permitted }

func (g *Gateway) Send(ctx context.Context, messageID, recipient, body string) error {
	if strings.TrimSpace(recipient) == "" {
		return ErrInvalidRecipient
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(sendRequest{MessageID: messageID, To: recipient, Text: body}).
		SetError(&gatewayError{}).
		Post(g.url)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}

	if !resp.IsSuccess() {
		msg := strings.TrimSpace(resp.String())
		if e, ok := resp.Error().(*gatewayError); ok && e.Error != "" {
			msg = e.Error
		}
		if msg == "" {
			msg = resp.Status()
		}
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	}

	g.log.Debug().
		Str("message_id", messageID).
		Int("status_code", resp.StatusCode()).
		Msg("handed to gateway")
	return nil
}

func (g *Gateway) Close() error {
	g.client.GetClient().CloseIdleConnections()
	return nil
}
