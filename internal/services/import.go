package services

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abrezinsky/chronolap/internal/errors"
	"github.com/abrezinsky/chronolap/internal/models"
	"github.com/abrezinsky/chronolap/internal/repository"
)

// Import header aliases. Sheets come from different organizers, so both
// Russian and English headings are accepted.
var (
	bibHeaders        = []string{"номер", "bib", "start number", "стартовый номер"}
	firstNameHeaders  = []string{"имя", "first name", "firstname"}
	lastNameHeaders   = []string{"фамилия", "last name", "lastname"}
	middleNameHeaders = []string{"отчество", "middle name", "middlename"}
	distanceHeaders   = []string{"дистанция", "distance", "гонка", "race"}
	genderHeaders     = []string{"пол", "gender"}
	teamHeaders       = []string{"команда", "team"}
	birthDateHeaders  = []string{"дата рождения", "date of birth", "birthdate"}
)

// ImportSkippedRow explains why an import row was not applied
type ImportSkippedRow struct {
	RowIndex int    `json:"rowIndex"`
	Reason   string `json:"reason"`
}

// ImportResult reports the outcome of a roster import
type ImportResult struct {
	Created           []models.Participant `json:"created"`
	Updated           []models.Participant `json:"updated"`
	CategoriesCreated []models.Category    `json:"categoriesCreated"`
	Skipped           []ImportSkippedRow   `json:"skipped"`
}

// ImportParticipantsCSV bulk-loads a roster from a CSV sheet. Rows are
// matched to existing participants by bib: matches are updated, the
// rest are created. Distance and gender columns combine into an
// auto-created category. Bad rows are skipped and reported, never fatal.
func (s *ParticipantService) ImportParticipantsCSV(ctx context.Context, raceID string, file io.Reader) (*ImportResult, error) {
	if err := s.ensureRace(ctx, raceID); err != nil {
		return nil, err
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Validation("Не удалось прочитать CSV-файл")
	}
	if len(records) == 0 {
		return nil, errors.Validation("Файл импорта пуст")
	}
	if len(records) < 2 {
		return nil, errors.Validation("В файле не найдено ни одной записи")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
	}

	var entries []repository.ImportEntry
	var skipped []ImportSkippedRow
	seenBibs := make(map[int]bool)

	for i, record := range records[1:] {
		rowIndex := i + 2
		row := rowValues(headers, record)
		if row.empty() {
			continue
		}

		bib, ok := parseBib(row.get(bibHeaders))
		if !ok {
			skipped = append(skipped, ImportSkippedRow{RowIndex: rowIndex, Reason: "Некорректный стартовый номер"})
			continue
		}
		if seenBibs[bib] {
			skipped = append(skipped, ImportSkippedRow{RowIndex: rowIndex, Reason: "Повторяющийся стартовый номер"})
			continue
		}
		seenBibs[bib] = true

		name := buildFullName(row.get(firstNameHeaders), row.get(middleNameHeaders), row.get(lastNameHeaders))
		if name == "" {
			skipped = append(skipped, ImportSkippedRow{RowIndex: rowIndex, Reason: "Не указано имя участника"})
			continue
		}

		entries = append(entries, repository.ImportEntry{
			Bib:          bib,
			Name:         name,
			CategoryName: buildCategoryName(row.get(distanceHeaders), row.get(genderHeaders)),
			Team:         strings.TrimSpace(row.get(teamHeaders)),
			BirthDate:    parseDateValue(row.get(birthDateHeaders)),
		})
	}

	result := &ImportResult{
		Created:           []models.Participant{},
		Updated:           []models.Participant{},
		CategoriesCreated: []models.Category{},
		Skipped:           skipped,
	}
	if result.Skipped == nil {
		result.Skipped = []ImportSkippedRow{}
	}
	if len(entries) == 0 {
		return result, nil
	}

	outcome, err := s.repo.ImportParticipants(ctx, raceID, entries, s.now())
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound(msgRaceNotFound)
		}
		return nil, errors.Internal(err)
	}

	updatedIDs := make([]string, len(outcome.Updated))
	for i, p := range outcome.Updated {
		updatedIDs[i] = p.ID
	}
	issued, err := s.repo.IssuedParticipantIDs(ctx, updatedIDs)
	if err != nil {
		return nil, errors.Internal(err)
	}

	result.Created = append(result.Created, outcome.Created...)
	for _, p := range outcome.Updated {
		p.IsBibIssued = issued[p.ID]
		result.Updated = append(result.Updated, p)
	}
	result.CategoriesCreated = append(result.CategoriesCreated, outcome.CategoriesCreated...)

	s.log.Info("participants imported", "raceId", raceID,
		"created", len(result.Created), "updated", len(result.Updated),
		"categories", len(result.CategoriesCreated), "skipped", len(result.Skipped))
	s.race.PublishState(ctx, raceID)
	return result, nil
}

// importRow maps normalized headers to a record's cell values
type importRow struct {
	values map[string]string
}

func rowValues(headers []string, record []string) importRow {
	values := make(map[string]string, len(headers))
	for i, header := range headers {
		if header == "" || i >= len(record) {
			continue
		}
		values[header] = record[i]
	}
	return importRow{values: values}
}

func (r importRow) get(keys []string) string {
	for _, key := range keys {
		if v, ok := r.values[key]; ok {
			return v
		}
	}
	return ""
}

func (r importRow) empty() bool {
	for _, v := range r.values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseBib(raw string) (int, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	bib, err := strconv.Atoi(trimmed)
	if err != nil || bib <= 0 {
		return 0, false
	}
	return bib, true
}

func buildFullName(firstName, middleName, lastName string) string {
	var parts []string
	for _, part := range []string{firstName, middleName, lastName} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

// buildCategoryName derives a category from the distance and gender
// columns, e.g. "10 км" + "ж" → "10 км Ж"
func buildCategoryName(distanceRaw, genderRaw string) string {
	distance := strings.TrimSpace(distanceRaw)
	gender := normalizeGender(genderRaw)

	switch {
	case distance != "" && gender != "":
		return distance + " " + gender
	case distance != "":
		return distance
	default:
		return gender
	}
}

func normalizeGender(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	switch strings.ToLower(trimmed) {
	case "m", "male", "man", "men", "м":
		return "М"
	case "f", "female", "woman", "women", "ж":
		return "Ж"
	}
	return strings.ToUpper(trimmed)
}

var (
	dayFirstDate = regexp.MustCompile(`^(\d{2})[./-](\d{2})[./-](\d{4})$`)
	isoDate      = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
)

// parseDateValue accepts dd.mm.yyyy (also with - and / separators),
// yyyy-mm-dd, and spreadsheet serial day numbers. Returns nil for
// anything unparseable.
func parseDateValue(raw string) *int64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if serial, err := strconv.ParseFloat(trimmed, 64); err == nil {
		// Spreadsheet epoch, day 0 = 1899-12-30.
		epoch := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
		ms := epoch.Add(time.Duration(serial * 24 * float64(time.Hour))).UnixMilli()
		return &ms
	}

	if m := dayFirstDate.FindStringSubmatch(trimmed); m != nil {
		return dateMillis(m[3], m[2], m[1])
	}
	if m := isoDate.FindStringSubmatch(trimmed); m != nil {
		return dateMillis(m[1], m[2], m[3])
	}

	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		ms := parsed.UnixMilli()
		return &ms
	}
	return nil
}

func dateMillis(yyyy, mm, dd string) *int64 {
	year, _ := strconv.Atoi(yyyy)
	month, _ := strconv.Atoi(mm)
	day, _ := strconv.Atoi(dd)
	ms := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).UnixMilli()
	return &ms
}
