package services

import (
	"fmt"
	"sort"

	"github.com/abrezinsky/chronolap/internal/models"
)

// lapEntry is a rider's running tally over the tap ledger
type lapEntry struct {
	laps    int
	lastTap int64
	hasTap  bool
}

// countLaps folds the tap ledger into per-bib lap counts. Every tap is
// one lap; the last-tap timestamp is the maximum seen for the bib.
func countLaps(taps []models.TapEvent) map[int]lapEntry {
	counts := make(map[int]lapEntry)
	for _, tap := range taps {
		entry := counts[tap.Bib]
		entry.laps++
		if !entry.hasTap || tap.Timestamp > entry.lastTap {
			entry.lastTap = tap.Timestamp
		}
		entry.hasTap = true
		counts[tap.Bib] = entry
	}
	return counts
}

// lessResults orders rows by laps descending, then by the time of the
// last tap ascending. Riders without a tap sort last; full ties fall
// back to bib ascending.
func lessResults(a, b models.ResultRow) bool {
	if a.Laps != b.Laps {
		return a.Laps > b.Laps
	}

	aTap, bTap := a.LastTap, b.LastTap
	switch {
	case aTap == nil && bTap == nil:
		return a.Bib < b.Bib
	case aTap == nil:
		return false
	case bTap == nil:
		return true
	case *aTap == *bTap:
		return a.Bib < b.Bib
	default:
		return *aTap < *bTap
	}
}

// FormatGap renders the distance from the leader as a display string.
// Riders a full lap or more behind get a lap count; riders on the lead
// lap get a time delta in seconds with adaptive precision.
func FormatGap(leader *models.ResultRow, row models.ResultRow) string {
	if leader == nil || leader.Laps == 0 {
		return "—"
	}

	lapDelta := leader.Laps - row.Laps
	if lapDelta > 0 {
		return fmt.Sprintf("-%d %s", lapDelta, lapWord(lapDelta))
	}

	if leader.LastTap == nil || row.LastTap == nil {
		return "+0с"
	}

	deltaMs := *row.LastTap - *leader.LastTap
	if deltaMs <= 0 {
		return "+0с"
	}

	seconds := float64(deltaMs) / 1000
	if seconds >= 10 {
		return fmt.Sprintf("+%.1fс", seconds)
	}
	return fmt.Sprintf("+%.2fс", seconds)
}

// lapWord picks the Russian plural form for a lap count
func lapWord(n int) string {
	switch {
	case n == 1:
		return "круг"
	case n < 5:
		return "круга"
	default:
		return "кругов"
	}
}

// BuildResults ranks every rider on the roster against the tap ledger.
// The returned slice is never nil.
func BuildResults(riders []models.Rider, taps []models.TapEvent) []models.ResultRow {
	counts := countLaps(taps)

	rows := make([]models.ResultRow, 0, len(riders))
	for _, rider := range riders {
		row := models.ResultRow{
			Bib:      rider.Bib,
			Name:     rider.Name,
			Category: rider.Category,
			Gap:      "—",
		}
		if entry, ok := counts[rider.Bib]; ok {
			row.Laps = entry.laps
			lastTap := entry.lastTap
			row.LastTap = &lastTap
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return lessResults(rows[i], rows[j])
	})

	var leader *models.ResultRow
	if len(rows) > 0 {
		leaderCopy := rows[0]
		leader = &leaderCopy
	}
	for i := range rows {
		rows[i].Position = i + 1
		rows[i].Gap = FormatGap(leader, rows[i])
	}

	return rows
}

// BuildPodium groups ranked rows by category and keeps the top three of
// each group. Groups follow the race's category order; categories seen
// only on rows are appended alphabetically. Empty groups are dropped.
func BuildPodium(categories []models.Category, rows []models.ResultRow) []models.PodiumGroup {
	// No podium until somebody completes a lap.
	if len(rows) == 0 || rows[0].Laps == 0 {
		return []models.PodiumGroup{}
	}

	grouped := make(map[string][]models.ResultRow)
	for _, row := range rows {
		key := row.Category
		if key == "" {
			key = models.UncategorizedName
		}
		grouped[key] = append(grouped[key], row)
	}

	known := make(map[string]bool, len(categories))
	orderedNames := make([]string, 0, len(grouped))
	for _, cat := range categories {
		known[cat.Name] = true
		orderedNames = append(orderedNames, cat.Name)
	}

	var extra []string
	for name := range grouped {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	orderedNames = append(orderedNames, extra...)

	groups := make([]models.PodiumGroup, 0, len(orderedNames))
	for _, name := range orderedNames {
		bucket, ok := grouped[name]
		if !ok || len(bucket) == 0 {
			continue
		}
		top := make([]models.ResultRow, len(bucket))
		copy(top, bucket)
		sort.SliceStable(top, func(i, j int) bool {
			return lessResults(top[i], top[j])
		})
		if len(top) > 3 {
			top = top[:3]
		}
		groups = append(groups, models.PodiumGroup{Category: name, Riders: top})
	}

	return groups
}

// BuildLeader finds the rider with the most completed laps. Riders are
// scanned in roster order and only a strictly higher lap count takes
// the lead, so earlier-listed riders win ties. Returns nil when the
// roster is empty.
func BuildLeader(totalLaps int, riders []models.Rider, taps []models.TapEvent) *models.Leader {
	counts := countLaps(taps)

	bestIdx := -1
	bestLaps := -1
	for i, rider := range riders {
		laps := counts[rider.Bib].laps
		if laps > bestLaps {
			bestIdx = i
			bestLaps = laps
		}
	}
	if bestIdx < 0 {
		return nil
	}

	rider := riders[bestIdx]
	name := rider.Name
	if name == "" {
		name = fmt.Sprintf("Гонщик #%d", rider.Bib)
	}

	remaining := totalLaps - bestLaps
	if remaining < 0 {
		remaining = 0
	}

	return &models.Leader{
		Bib:           rider.Bib,
		Name:          name,
		LapsCompleted: bestLaps,
		LapsRemaining: remaining,
	}
}
