package server

import (
	"errors"
	"net/http"

	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/storage"
)

// HandleGetVerdict handles GET /v1/verdicts/{uuid}.
// Returns the operation's current verdict: the newest row across the
// screening and change logs.
func (h *Handlers) HandleGetVerdict(w http.ResponseWriter, r *http.Request) {
	id, err := parseOperationID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	verdict, err := h.svc.Latest(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound,
				"no verdict for operation "+id.String())
			return
		}
		h.writeInternalError(w, r, "failed to load verdict", err)
		return
	}

	writeJSON(w, r, http.StatusOK, verdict)
}

// HandleVerdictHistory handles GET /v1/verdicts/{uuid}/history.
// Returns every verdict revision for the operation, oldest first, each
// tagged with its source log.
func (h *Handlers) HandleVerdictHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseOperationID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	records, err := h.svc.History(r.Context(), id)
	if err != nil {
		h.writeInternalError(w, r, "failed to load verdict history", err)
		return
	}
	if len(records) == 0 {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound,
			"no verdicts for operation "+id.String())
		return
	}

	writeList(w, r, http.StatusOK, records, len(records))
}
