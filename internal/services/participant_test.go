package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/abrezinsky/chronolap/internal/errors"
	"github.com/abrezinsky/chronolap/internal/models"
	"github.com/abrezinsky/chronolap/internal/services"
)

func TestCreateParticipant_Validation(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)

	tests := []struct {
		name string
		opts services.CreateParticipantOptions
		kind errors.Kind
	}{
		{"zero bib", services.CreateParticipantOptions{Bib: 0, Name: "Анна"}, errors.ErrValidation},
		{"negative bib", services.CreateParticipantOptions{Bib: -1, Name: "Анна"}, errors.ErrValidation},
		{"empty name", services.CreateParticipantOptions{Bib: 1, Name: "  "}, errors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.participant.CreateParticipant(ctx, race.ID, tt.opts)
			assertKind(t, err, tt.kind)
		})
	}

	badCategory := "no-such-category"
	_, err := s.participant.CreateParticipant(ctx, race.ID, services.CreateParticipantOptions{
		Bib:        1,
		Name:       "Анна",
		CategoryID: &badCategory,
	})
	assertKind(t, err, errors.ErrValidation)
}

func TestCreateParticipant_DuplicateBib(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)
	if _, err := s.participant.CreateParticipant(ctx, race.ID, services.CreateParticipantOptions{
		Bib:  7,
		Name: "Анна",
	}); err != nil {
		t.Fatalf("failed to create participant: %v", err)
	}

	_, err := s.participant.CreateParticipant(ctx, race.ID, services.CreateParticipantOptions{
		Bib:  7,
		Name: "Борис",
	})
	assertKind(t, err, errors.ErrConflict)

	// The same bib is fine in another race.
	other := s.createRace(t, "Другая", 5, 0)
	if _, err := s.participant.CreateParticipant(ctx, other.ID, services.CreateParticipantOptions{
		Bib:  7,
		Name: "Вера",
	}); err != nil {
		t.Fatalf("expected the bib to be free in another race, got %v", err)
	}
}

func TestUpdateParticipant_CascadesToTaps(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)
	rider := s.addRider(t, race.ID, 1, "Анна", nil)
	if _, err := s.tap.RecordTap(ctx, race.ID, 1, models.SourceManual, false); err != nil {
		t.Fatalf("failed to record tap: %v", err)
	}

	updated, err := s.participant.UpdateParticipant(ctx, race.ID, rider.ID, services.UpdateParticipantOptions{
		Bib:  models.Set(42),
		Name: models.Set("Анна Иванова"),
	})
	if err != nil {
		t.Fatalf("failed to update participant: %v", err)
	}
	if updated.Bib != 42 || updated.Name != "Анна Иванова" {
		t.Errorf("expected updated bib and name, got %+v", updated)
	}
	if !updated.IsBibIssued {
		t.Error("expected issuance to survive the update")
	}

	state, err := s.race.GetState(ctx, race.ID)
	if err != nil {
		t.Fatalf("failed to get state: %v", err)
	}
	if state.TapEvents[0].Bib != 42 {
		t.Errorf("expected tap bib cascaded to 42, got %d", state.TapEvents[0].Bib)
	}
	if state.TapEvents[0].Name != "Анна Иванова" {
		t.Errorf("expected tap name cascaded, got %q", state.TapEvents[0].Name)
	}
}

func TestUpdateParticipant_BibCollision(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)
	s.addRider(t, race.ID, 1, "Анна", nil)
	second := s.addRider(t, race.ID, 2, "Борис", nil)

	_, err := s.participant.UpdateParticipant(ctx, race.ID, second.ID, services.UpdateParticipantOptions{
		Bib: models.Set(1),
	})
	assertKind(t, err, errors.ErrConflict)

	// Re-submitting the current bib is not a collision.
	if _, err := s.participant.UpdateParticipant(ctx, race.ID, second.ID, services.UpdateParticipantOptions{
		Bib: models.Set(2),
	}); err != nil {
		t.Fatalf("expected own bib to be accepted, got %v", err)
	}
}

func TestUpdateParticipant_ClearCategory(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)
	cat, err := s.category.CreateCategory(ctx, race.ID, services.CreateCategoryOptions{Name: "Элита"})
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	rider := s.addRider(t, race.ID, 1, "Анна", &cat.ID)

	updated, err := s.participant.UpdateParticipant(ctx, race.ID, rider.ID, services.UpdateParticipantOptions{
		CategoryID: models.Clear[string](),
	})
	if err != nil {
		t.Fatalf("failed to update participant: %v", err)
	}
	if updated.CategoryID != "" {
		t.Errorf("expected category cleared, got %q", updated.CategoryID)
	}
}

func TestDeleteParticipants_RemovesTaps(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)
	first := s.addRider(t, race.ID, 1, "Анна", nil)
	s.addRider(t, race.ID, 2, "Борис", nil)
	if _, err := s.tap.RecordTap(ctx, race.ID, 1, models.SourceManual, false); err != nil {
		t.Fatalf("failed to record tap: %v", err)
	}
	if _, err := s.tap.RecordTap(ctx, race.ID, 2, models.SourceManual, false); err != nil {
		t.Fatalf("failed to record tap: %v", err)
	}

	deleted, err := s.participant.DeleteParticipants(ctx, race.ID, []string{first.ID, "no-such-id"})
	if err != nil {
		t.Fatalf("failed to delete participants: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", deleted)
	}

	state, err := s.race.GetState(ctx, race.ID)
	if err != nil {
		t.Fatalf("failed to get state: %v", err)
	}
	if len(state.Riders) != 1 || state.Riders[0].Bib != 2 {
		t.Fatalf("expected only bib 2 on the roster, got %+v", state.Riders)
	}
	if len(state.TapEvents) != 1 || state.TapEvents[0].Bib != 2 {
		t.Fatalf("expected only bib 2's tap to survive, got %+v", state.TapEvents)
	}

	_, err = s.participant.DeleteParticipants(ctx, race.ID, nil)
	assertKind(t, err, errors.ErrValidation)
}

func TestSetIssued_RevokeErasesLaps(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)
	rider := s.addRider(t, race.ID, 1, "Анна", nil)
	if _, err := s.tap.RecordTap(ctx, race.ID, 1, models.SourceManual, false); err != nil {
		t.Fatalf("failed to record tap: %v", err)
	}

	revoked, err := s.participant.SetIssued(ctx, race.ID, rider.ID, false)
	if err != nil {
		t.Fatalf("failed to revoke bib: %v", err)
	}
	if revoked.IsBibIssued {
		t.Error("expected issuance flag cleared")
	}

	state, err := s.race.GetState(ctx, race.ID)
	if err != nil {
		t.Fatalf("failed to get state: %v", err)
	}
	if len(state.Riders) != 0 {
		t.Errorf("expected the rider to leave the timing view, got %+v", state.Riders)
	}
	if len(state.TapEvents) != 0 {
		t.Errorf("expected recorded laps erased on revoke, got %d", len(state.TapEvents))
	}
}

func TestImportParticipantsCSV(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)

	csvData := strings.Join([]string{
		"Номер,Фамилия,Имя,Отчество,Пол,Дистанция,Команда,Дата рождения",
		"1,Иванова,Анна,Петровна,Ж,10 км,Спартак,01.05.1990",
		"2,Петров,Борис,,М,10 км,,1985-03-12",
		"3,Сидорова,Вера,,f,5 км,Динамо,",
		"abc,Кто-то,Имя,,,,,",
		"2,Дубль,Номер,,,,,",
		"4,,,,,,,",
	}, "\n")

	result, err := s.participant.ImportParticipantsCSV(ctx, race.ID, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("failed to import: %v", err)
	}

	if len(result.Created) != 3 {
		t.Fatalf("expected 3 created, got %d", len(result.Created))
	}
	if len(result.Updated) != 0 {
		t.Errorf("expected 0 updated, got %d", len(result.Updated))
	}
	if len(result.Skipped) != 3 {
		t.Fatalf("expected 3 skipped, got %d: %+v", len(result.Skipped), result.Skipped)
	}

	wantReasons := map[int]string{
		5: "Некорректный стартовый номер",
		6: "Повторяющийся стартовый номер",
		7: "Не указано имя участника",
	}
	for _, skip := range result.Skipped {
		want, ok := wantReasons[skip.RowIndex]
		if !ok {
			t.Errorf("unexpected skipped row %d (%s)", skip.RowIndex, skip.Reason)
			continue
		}
		if skip.Reason != want {
			t.Errorf("row %d: expected reason %q, got %q", skip.RowIndex, want, skip.Reason)
		}
	}

	if len(result.CategoriesCreated) != 3 {
		t.Fatalf("expected 3 auto-created categories, got %d", len(result.CategoriesCreated))
	}
	names := map[string]bool{}
	for _, cat := range result.CategoriesCreated {
		names[cat.Name] = true
	}
	if !names["10 км Ж"] || !names["10 км М"] || !names["5 км Ж"] {
		t.Errorf("expected categories 10 км Ж, 10 км М and 5 км Ж, got %v", names)
	}

	byBib := map[int]models.Participant{}
	for _, p := range result.Created {
		byBib[p.Bib] = p
	}
	if byBib[1].Name != "Анна Петровна Иванова" {
		t.Errorf("expected full name assembled, got %q", byBib[1].Name)
	}
	if byBib[1].Team != "Спартак" {
		t.Errorf("expected team Спартак, got %q", byBib[1].Team)
	}
	wantBirth := time.Date(1990, time.May, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if byBib[1].BirthDate == nil || *byBib[1].BirthDate != wantBirth {
		t.Errorf("expected birth date %d, got %v", wantBirth, byBib[1].BirthDate)
	}
	wantISO := time.Date(1985, time.March, 12, 0, 0, 0, 0, time.UTC).UnixMilli()
	if byBib[2].BirthDate == nil || *byBib[2].BirthDate != wantISO {
		t.Errorf("expected birth date %d, got %v", wantISO, byBib[2].BirthDate)
	}
}

func TestImportParticipantsCSV_UpdatesByBib(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)
	existing := s.addRider(t, race.ID, 1, "Старое Имя", nil)

	csvData := "bib,first name,last name\n1,Анна,Иванова\n2,Борис,Петров\n"
	result, err := s.participant.ImportParticipantsCSV(ctx, race.ID, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("failed to import: %v", err)
	}

	if len(result.Updated) != 1 {
		t.Fatalf("expected 1 updated, got %d", len(result.Updated))
	}
	if result.Updated[0].ID != existing.ID {
		t.Errorf("expected the existing participant to be matched by bib")
	}
	if result.Updated[0].Name != "Анна Иванова" {
		t.Errorf("expected name replaced, got %q", result.Updated[0].Name)
	}
	if !result.Updated[0].IsBibIssued {
		t.Error("expected issuance to survive the import")
	}
	if len(result.Created) != 1 || result.Created[0].Bib != 2 {
		t.Fatalf("expected bib 2 created, got %+v", result.Created)
	}
}

func TestImportParticipantsCSV_ReusesExistingCategories(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)
	if _, err := s.category.CreateCategory(ctx, race.ID, services.CreateCategoryOptions{Name: "10 км М"}); err != nil {
		t.Fatalf("failed to create category: %v", err)
	}

	csvData := "номер,имя,дистанция,пол\n1,Борис,10 км,м\n"
	result, err := s.participant.ImportParticipantsCSV(ctx, race.ID, strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("failed to import: %v", err)
	}
	if len(result.CategoriesCreated) != 0 {
		t.Errorf("expected the existing category to be reused, got %+v", result.CategoriesCreated)
	}
	if len(result.Created) != 1 {
		t.Fatalf("expected 1 created, got %d", len(result.Created))
	}
}

func TestImportParticipantsCSV_EmptyFile(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	race := s.createRace(t, "Гонка", 5, 0)

	_, err := s.participant.ImportParticipantsCSV(ctx, race.ID, strings.NewReader(""))
	assertKind(t, err, errors.ErrValidation)

	_, err = s.participant.ImportParticipantsCSV(ctx, race.ID, strings.NewReader("номер,имя\n"))
	assertKind(t, err, errors.ErrValidation)
}
