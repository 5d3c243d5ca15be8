package server

import (
	"errors"
	"net/http"

	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/screening"
)

// HandleScreen handles POST /v1/screenings/{vertical}.
//
// The vertical route segment selects the check catalog slice and role
// schema; the body is the shared screening request. A successful call
// appends a verdict row and returns the assembled verdict. An
// Idempotency-Key header makes retries replay the stored response instead
// of re-screening.
func (h *Handlers) HandleScreen(w http.ResponseWriter, r *http.Request) {
	vertical, ok := model.ParseVertical(r.PathValue("vertical"))
	if !ok {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound,
			"unknown vertical: "+r.PathValue("vertical"))
		return
	}

	var req model.ScreeningRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	idem, proceed := h.beginIdempotentWrite(w, r, "POST:/v1/screenings/"+string(vertical), req)
	if !proceed {
		return
	}

	verdict, err := h.svc.Screen(r.Context(), vertical, req)
	if err != nil {
		h.clearIdempotentWrite(r, idem)
		switch {
		case errors.Is(err, screening.ErrInvalidRequest):
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		default:
			h.writeInternalError(w, r, "screening failed", err)
		}
		return
	}

	h.completeIdempotentWriteBestEffort(r, idem, http.StatusCreated, verdict)
	writeJSON(w, r, http.StatusCreated, verdict)
}
