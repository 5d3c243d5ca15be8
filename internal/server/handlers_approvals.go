package server

import (
	"errors"
	"net/http"

	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/screening"
	"github.com/harborview/marisk/internal/storage"
)

// HandleApprove handles POST /v1/approvals.
//
// Records the approval act against the operation's approval log and
// reconciles it onto the latest verdict. The reconciled verdict is returned;
// a change-log row is appended only when the stakeholder projection moved.
func (h *Handlers) HandleApprove(w http.ResponseWriter, r *http.Request) {
	var req model.ApprovalRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	idem, proceed := h.beginIdempotentWrite(w, r, "POST:/v1/approvals", req)
	if !proceed {
		return
	}

	verdict, err := h.svc.Approve(r.Context(), req)
	if err != nil {
		h.clearIdempotentWrite(r, idem)
		switch {
		case errors.Is(err, screening.ErrInvalidRequest):
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound,
				"no verdict for operation "+req.UUID.String())
		default:
			h.writeInternalError(w, r, "approval failed", err)
		}
		return
	}

	h.completeIdempotentWriteBestEffort(r, idem, http.StatusOK, verdict)
	writeJSON(w, r, http.StatusOK, verdict)
}
