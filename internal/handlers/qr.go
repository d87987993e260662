package handlers

import (
	"net/http"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// handleShareQR renders a QR code pointing at the public results page
// for a race, for printing at the checkpoint
func (h *Handlers) handleShareQR(w http.ResponseWriter, r *http.Request) {
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

	ref := race.ID
	if race.Slug != nil && *race.Slug != "" {
		ref = *race.Slug
	}
	target := strings.TrimRight(h.baseURL, "/") + "/results/" + ref

	size := 256
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 64 || parsed > 1024 {
			respondError(w, BadRequest("size must be between 64 and 1024"))
			return
		}
		size = parsed
	}

	png, err := qrcode.Encode(target, qrcode.Medium, size)
	if err != nil {
		respondError(w, InternalError(err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
