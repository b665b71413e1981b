package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/shohag/smsrelay/internal/models"
)

type RelayHandler struct {
	instructions Instructions
	signals      chan<- models.Signal
	log          zerolog.Logger
}

func NewRelayHandler(instructions Instructions, signals chan<- models.Signal, log zerolog.Logger) *RelayHandler {
	return &RelayHandler{instructions: instructions, signals: signals, log: log}
}

type acceptedResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id,omitempty"`
}

// Instruction accepts a push data record. Anything that parses as a flat JSON
// object is accepted; invalid instructions are dropped by the coordinator.
func (h *RelayHandler) Instruction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var data map[string]string
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// the send outlives the request if the caller hangs up
	ctx := context.WithoutCancel(r.Context())
	if err := h.instructions.HandleInstruction(ctx, data); err != nil {
		h.log.Debug().Err(err).Str("message_id", data["message_id"]).Msg("instruction not sent")
	}

	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", MessageID: data["message_id"]})
}

type telephonyCallback struct {
	MessageID string `json:"message_id"`
	Code      int    `json:"code"`
}

// Telephony receives sent and delivered callbacks from a modem gateway.
func (h *RelayHandler) Telephony(w http.ResponseWriter, r *http.Request) {
	phase := models.Phase(chi.URLParam(r, "phase"))
	if phase != models.PhaseSent && phase != models.PhaseDelivered {
		writeError(w, http.StatusNotFound, "unknown phase")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req telephonyCallback
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MessageID == "" {
		writeError(w, http.StatusBadRequest, "message_id is required")
		return
	}

	sig := models.Signal{MessageID: req.MessageID, Phase: phase, Code: req.Code}
	select {
	case h.signals <- sig:
		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", MessageID: req.MessageID})
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, "signal queue full")
	}
}
