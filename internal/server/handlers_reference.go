package server

import (
	"errors"
	"net/http"

	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/storage"
)

// HandleWatchlistLookup handles GET /v1/reference/watchlist/{imo}.
// Direct read of the local watchlist register, the same table the UANI
// check consults during screening.
func (h *Handlers) HandleWatchlistLookup(w http.ResponseWriter, r *http.Request) {
	imo := r.PathValue("imo")
	if err := model.ValidateIMO(imo); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	vessel, err := h.db.LookupWatchlistVessel(r.Context(), imo)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound,
				"vessel not on watchlist: "+imo)
			return
		}
		h.writeInternalError(w, r, "watchlist lookup failed", err)
		return
	}

	writeJSON(w, r, http.StatusOK, vessel)
}

// HandleSanctionsLookup handles GET /v1/reference/sanctions?name=.
// Looks up a party in the sanctioned-entity register by normalized name.
func (h *Handlers) HandleSanctionsLookup(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "name query parameter is required")
		return
	}
	if len(name) > model.MaxNameLen {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "name exceeds maximum length")
		return
	}

	entity, err := h.db.LookupSanctionedEntity(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound,
				"entity not in sanctions register: "+name)
			return
		}
		h.writeInternalError(w, r, "sanctions lookup failed", err)
		return
	}

	writeJSON(w, r, http.StatusOK, entity)
}
