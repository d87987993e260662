package services_test

import (
	"context"
	"testing"

	"github.com/abrezinsky/chronolap/internal/errors"
	"github.com/abrezinsky/chronolap/internal/models"
	"github.com/abrezinsky/chronolap/internal/services"
)

func TestCreateCategory_AppendsAfterExisting(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)

	first, err := s.category.CreateCategory(ctx, race.ID, services.CreateCategoryOptions{Name: "Элита"})
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	if first.Order != 0 {
		t.Errorf("expected first category at order 0, got %d", first.Order)
	}

	second, err := s.category.CreateCategory(ctx, race.ID, services.CreateCategoryOptions{Name: "Юниоры"})
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	if second.Order != 1 {
		t.Errorf("expected second category at order 1, got %d", second.Order)
	}

	explicit := 10
	third, err := s.category.CreateCategory(ctx, race.ID, services.CreateCategoryOptions{
		Name:  "Ветераны",
		Order: &explicit,
	})
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	if third.Order != 10 {
		t.Errorf("expected explicit order 10, got %d", third.Order)
	}
}

func TestCreateCategory_Validation(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)

	_, err := s.category.CreateCategory(ctx, race.ID, services.CreateCategoryOptions{Name: "  "})
	assertKind(t, err, errors.ErrValidation)

	_, err = s.category.CreateCategory(ctx, "no-such-race", services.CreateCategoryOptions{Name: "Элита"})
	assertKind(t, err, errors.ErrNotFound)
}

func TestUpdateCategory_RenameCascadesToTaps(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)
	cat, err := s.category.CreateCategory(ctx, race.ID, services.CreateCategoryOptions{Name: "Элита"})
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	s.addRider(t, race.ID, 1, "Анна", &cat.ID)
	if _, err := s.tap.RecordTap(ctx, race.ID, 1, models.SourceManual, false); err != nil {
		t.Fatalf("failed to record tap: %v", err)
	}

	updated, err := s.category.UpdateCategory(ctx, race.ID, cat.ID, services.UpdateCategoryOptions{
		Name: models.Set("Профи"),
	})
	if err != nil {
		t.Fatalf("failed to update category: %v", err)
	}
	if updated.Name != "Профи" {
		t.Errorf("expected new name, got %q", updated.Name)
	}

	state, err := s.race.GetState(ctx, race.ID)
	if err != nil {
		t.Fatalf("failed to get state: %v", err)
	}
	if len(state.TapEvents) != 1 {
		t.Fatalf("expected 1 tap event, got %d", len(state.TapEvents))
	}
	if state.TapEvents[0].Category != "Профи" {
		t.Errorf("expected the rename to cascade onto taps, got %q", state.TapEvents[0].Category)
	}
	if state.Riders[0].Category != "Профи" {
		t.Errorf("expected riders to follow the rename, got %q", state.Riders[0].Category)
	}
}

func TestUpdateCategory_ClearDescription(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)
	cat, err := s.category.CreateCategory(ctx, race.ID, services.CreateCategoryOptions{
		Name:        "Элита",
		Description: "Основной зачёт",
	})
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}

	updated, err := s.category.UpdateCategory(ctx, race.ID, cat.ID, services.UpdateCategoryOptions{
		Description: models.Clear[string](),
	})
	if err != nil {
		t.Fatalf("failed to update category: %v", err)
	}
	if updated.Description != "" {
		t.Errorf("expected description to be cleared, got %q", updated.Description)
	}
	if updated.Name != "Элита" {
		t.Errorf("expected name to survive, got %q", updated.Name)
	}
}

func TestDeleteCategory_DetachesRidersAndTaps(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)
	cat, err := s.category.CreateCategory(ctx, race.ID, services.CreateCategoryOptions{Name: "Элита"})
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	rider := s.addRider(t, race.ID, 1, "Анна", &cat.ID)
	if _, err := s.tap.RecordTap(ctx, race.ID, 1, models.SourceManual, false); err != nil {
		t.Fatalf("failed to record tap: %v", err)
	}

	if err := s.category.DeleteCategory(ctx, race.ID, cat.ID); err != nil {
		t.Fatalf("failed to delete category: %v", err)
	}

	state, err := s.race.GetState(ctx, race.ID)
	if err != nil {
		t.Fatalf("failed to get state: %v", err)
	}
	if len(state.Categories) != 0 {
		t.Fatalf("expected no categories, got %d", len(state.Categories))
	}
	if state.Riders[0].Category != models.UncategorizedName {
		t.Errorf("expected rider detached to %q, got %q", models.UncategorizedName, state.Riders[0].Category)
	}
	if state.TapEvents[0].Category != models.UncategorizedName {
		t.Errorf("expected tap detached to %q, got %q", models.UncategorizedName, state.TapEvents[0].Category)
	}

	participants, err := s.participant.ListParticipants(ctx, race.ID)
	if err != nil {
		t.Fatalf("failed to list participants: %v", err)
	}
	if len(participants) != 1 || participants[0].ID != rider.ID {
		t.Fatalf("expected the participant to survive, got %+v", participants)
	}
	if participants[0].CategoryID != "" {
		t.Errorf("expected participant category cleared, got %q", participants[0].CategoryID)
	}
}

func TestDeleteCategory_NotFound(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)
	err := s.category.DeleteCategory(ctx, race.ID, "no-such-category")
	assertKind(t, err, errors.ErrNotFound)
}
