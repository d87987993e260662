package handlers

import (
	"net/http"

	"github.com/abrezinsky/chronolap/internal/models"
)

// handleRecordTap records a checkpoint crossing for a bib. A 409 with
// code TAP_CONFIRMATION_REQUIRED means the bib tapped inside the
// cooldown window; retrying with confirmed=true records it anyway.
func (h *Handlers) handleRecordTap(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req TapRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	event, err := h.Tap.RecordTap(r.Context(), raceID, req.Bib, models.TapSource(req.Source), req.Confirmed)
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, event)
}

// handleCancelTap removes a tap event from the ledger
func (h *Handlers) handleCancelTap(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}
	eventID, err := requireParam(r, "eventID")
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.Tap.CancelTap(r.Context(), raceID, eventID); err != nil {
		respondError(w, err)
		return
	}
	respondDeleted(w)
}
