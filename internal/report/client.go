package report

import (
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/shohag/smsrelay/internal/config"
)

const userAgent = "smsrelay/1.0"

// NewClient builds the controller-facing HTTP client. Connect and read
// timeouts are enforced by the transport; the overall request deadline is
// their sum plus the write timeout. Retries are disabled.
func NewClient(cfg config.ReporterConfig, log zerolog.Logger) *resty.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          4,
	}

	return resty.New().
		SetTransport(transport).
		SetTimeout(cfg.ConnectTimeout+cfg.WriteTimeout+cfg.ReadTimeout).
		SetRetryCount(0).
		SetLogger(restyLogger{log: log}).
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", "application/json")
}

type restyLogger struct {
	log zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.log.Error().Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn().Msgf(format, v...)
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug().Msgf(format, v...)
}
