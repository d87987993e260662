package handlers

import (
	"net/http"

	"github.com/abrezinsky/chronolap/internal/services"
)

// handleCreateCategory adds a category to a race
func (h *Handlers) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req CreateCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	cat, err := h.Category.CreateCategory(r.Context(), raceID, services.CreateCategoryOptions{
		Name:        req.Name,
		Description: req.Description,
		Order:       req.Order,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondCreated(w, cat)
}

// handleUpdateCategory applies a partial category update
func (h *Handlers) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}
	categoryID, err := requireParam(r, "categoryID")
	if err != nil {
		respondError(w, err)
		return
	}

	var req UpdateCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	cat, err := h.Category.UpdateCategory(r.Context(), raceID, categoryID, services.UpdateCategoryOptions{
		Name:        req.Name,
		Description: req.Description,
		Order:       req.Order,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, cat)
}

// handleDeleteCategory removes a category, detaching its riders and taps
func (h *Handlers) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	raceID, err := requireParam(r, "raceID")
	if err != nil {
		respondError(w, err)
		return
	}
	categoryID, err := requireParam(r, "categoryID")
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.Category.DeleteCategory(r.Context(), raceID, categoryID); err != nil {
		respondError(w, err)
		return
	}
	respondDeleted(w)
}
