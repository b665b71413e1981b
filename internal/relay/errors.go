package relay

import "errors"

var (
	// ErrMalformedInstruction: wrong action or missing fields. Dropped without a report.
	ErrMalformedInstruction = errors.New("malformed instruction")
	ErrPermissionDenied     = errors.New("send permission not granted")
	ErrQuotaExceeded        = errors.New("daily SMS limit reached")
	// ErrSendRejected wraps a synchronous failure from the send primitive.
	ErrSendRejected = errors.New("send rejected")
)

// Report texts for failures that happen before the send primitive runs.
const (
	PermissionDeniedMessage = "SEND permission not granted. Grant the relay permission to send SMS and retry."
	QuotaExceededMessage    = "Daily SMS limit reached"
)
