package handlers

import (
	"net/http"

	"github.com/abrezinsky/chronolap/internal/models"
	"github.com/abrezinsky/chronolap/internal/services"
)

// handleListRaces returns public summaries for all races
func (h *Handlers) handleListRaces(w http.ResponseWriter, r *http.Request) {
	listings, err := h.Race.ListRaces(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, listings)
}

// handleCreateRace creates a race
func (h *Handlers) handleCreateRace(w http.ResponseWriter, r *http.Request) {
	var req CreateRaceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	race, err := h.Race.CreateRace(r.Context(), services.CreateRaceOptions{
		Name:               req.Name,
		TotalLaps:          req.TotalLaps,
		TapCooldownSeconds: req.TapCooldownSeconds,
		Slug:               req.Slug,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, race)
}

// handleGetRace returns a race with its roster and categories
func (h *Handlers) handleGetRace(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}

	race, err := h.Race.GetRace(r.Context(), raceID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, race)
}

// handleGetRaceBySlug resolves a race through its public slug
func (h *Handlers) handleGetRaceBySlug(w http.ResponseWriter, r *http.Request) {
	slug, err := requireParam(r, "slug")
	if err != nil {
		respondError(w, err)
		return
	}

	race, err := h.Race.GetRaceBySlug(r.Context(), slug)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, race)
}

// handleUpdateRace applies a partial race update
func (h *Handlers) handleUpdateRace(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req UpdateRaceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	race, err := h.Race.UpdateRace(r.Context(), raceID, services.UpdateRaceOptions{
		Name:               req.Name,
		TotalLaps:          req.TotalLaps,
		TapCooldownSeconds: req.TapCooldownSeconds,
		Slug:               req.Slug,
		StartedAt:          req.StartedAt,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, race)
}

// handleStartRace stamps the race start time
func (h *Handlers) handleStartRace(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}

	race, err := h.Race.StartRace(r.Context(), raceID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, race)
}

// handleStopRace clears the race start time
func (h *Handlers) handleStopRace(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}

	race, err := h.Race.StopRace(r.Context(), raceID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, race)
}

// handleDeleteRace removes a race and everything it owns
func (h *Handlers) handleDeleteRace(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.Race.DeleteRace(r.Context(), raceID); err != nil {
		respondError(w, err)
		return
	}
	respondDeleted(w)
}

// handleGetState returns the canonical race snapshot
func (h *Handlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}

	state, err := h.Race.GetState(r.Context(), raceID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, state)
}

// handleGetStateBySlug returns the snapshot for the race behind a slug
func (h *Handlers) handleGetStateBySlug(w http.ResponseWriter, r *http.Request) {
	slug, err := requireParam(r, "slug")
	if err != nil {
		respondError(w, err)
		return
	}

	state, err := h.Race.GetStateBySlug(r.Context(), slug)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, state)
}

// ResultsResponse is the ranked leaderboard with per-category podiums
type ResultsResponse struct {
	Rows   []models.ResultRow   `json:"rows"`
	Podium []models.PodiumGroup `json:"podium"`
}

// handleGetResults returns the ranked leaderboard for a race
func (h *Handlers) handleGetResults(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}

	rows, podium, err := h.Race.GetResults(r.Context(), raceID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, ResultsResponse{Rows: rows, Podium: podium})
}

// handleGetLapsRemaining returns the leader summary for the head-up display
func (h *Handlers) handleGetLapsRemaining(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}

	summary, err := h.Race.GetLapsRemaining(r.Context(), raceID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, summary)
}

// handleRaceWS attaches a websocket viewer to a race
func (h *Handlers) handleRaceWS(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}
	h.Hub.ServeWs(w, r, raceID)
}
