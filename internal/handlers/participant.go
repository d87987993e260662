package handlers

import (
	"io"
	"net/http"

	"github.com/abrezinsky/chronolap/internal/services"
)

// handleListParticipants returns a race's roster
func (h *Handlers) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}

	participants, err := h.Participant.ListParticipants(r.Context(), raceID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, participants)
}

// handleCreateParticipant adds a roster entry
func (h *Handlers) handleCreateParticipant(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req CreateParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	p, err := h.Participant.CreateParticipant(r.Context(), raceID, services.CreateParticipantOptions{
		Bib:        req.Bib,
		Name:       req.Name,
		CategoryID: req.CategoryID,
		Team:       req.Team,
		BirthDate:  req.BirthDate,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, p)
}

// handleUpdateParticipant applies a partial roster entry update
func (h *Handlers) handleUpdateParticipant(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}
	participantID, err := requireParam(r, "participantID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req UpdateParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	p, err := h.Participant.UpdateParticipant(r.Context(), raceID, participantID, services.UpdateParticipantOptions{
		Bib:        req.Bib,
		Name:       req.Name,
		CategoryID: req.CategoryID,
		Team:       req.Team,
		BirthDate:  req.BirthDate,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, p)
}

// handleDeleteParticipants removes roster entries in bulk
func (h *Handlers) handleDeleteParticipants(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req DeleteParticipantsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	deleted, err := h.Participant.DeleteParticipants(r.Context(), raceID, req.IDs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, map[string]int{"deleted": deleted})
}

// handleSetIssued toggles a participant's bib issuance
func (h *Handlers) handleSetIssued(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}
	participantID, err := requireParam(r, "participantID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req SetIssuedRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	p, err := h.Participant.SetIssued(r.Context(), raceID, participantID, req.Issued)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, p)
}

// handleImportParticipants bulk-loads the roster from an uploaded CSV.
// Accepts either a multipart form with a "file" part or a raw CSV body.
func (h *Handlers) handleImportParticipants(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}

	var reader io.Reader = r.Body
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		reader = file
	}

	result, err := h.Participant.ImportParticipantsCSV(r.Context(), raceID, reader)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, result)
}
