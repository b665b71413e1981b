package api

import (
	"net/http"

	"github.com/shohag/smsrelay/internal/quota"
)

type QuotaHandler struct {
	quota QuotaReader
}

func NewQuotaHandler(q QuotaReader) *QuotaHandler {
	return &QuotaHandler{quota: q}
}

type quotaResponse struct {
	Count     int    `json:"count"`
	Limit     int    `json:"limit"`
	ResetDate string `json:"reset_date"`
	Details   string `json:"details"`
}

func (h *QuotaHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "smsrelay",
	})
}

func (h *QuotaHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap := h.quota.Snapshot(r.Context())
	writeJSON(w, http.StatusOK, quotaResponse{
		Count:     snap.Count,
		Limit:     quota.DailyLimit,
		ResetDate: snap.ResetDate,
		Details:   h.quota.Details(r.Context()),
	})
}
