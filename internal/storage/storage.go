package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shohag/smsrelay/internal/models"
)

// Record namespaces. Each holds a single JSON document.
const (
	QuotaNamespace       = "sms_limit"
	CredentialsNamespace = "relay_credentials"
)

// ErrCorrupt is returned when a stored record cannot be decoded.
var ErrCorrupt = errors.New("stored record is corrupt")

type Storage interface {
	// Quota ledger
	GetQuota(ctx context.Context) (*models.QuotaState, error)
	PutQuota(ctx context.Context, q *models.QuotaState) error

	// Credentials
	GetCredentials(ctx context.Context) (*models.Credentials, error)
	PutCredentials(ctx context.Context, c *models.Credentials) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func decodeRecord(namespace string, raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, namespace, err)
	}
	return nil
}
