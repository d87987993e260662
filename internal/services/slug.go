package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/abrezinsky/chronolap/internal/repository"
)

const maxSlugLength = 60

// normalizeSlug lowercases the input and collapses every run of
// non-letter, non-digit characters into a single dash. Returns "" when
// nothing usable remains.
func normalizeSlug(input string) string {
	decomposed := norm.NFKD.String(input)

	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(decomposed) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash && b.Len() > 0 {
			b.WriteRune('-')
			lastDash = true
		}
	}

	return strings.Trim(b.String(), "-")
}

func randomSlug() string {
	return fmt.Sprintf("race-%s", uuid.NewString()[:8])
}

// ensureUniqueSlug caps the base at 60 characters and appends -2, -3, …
// until the slug is free, ignoring the race being updated
func ensureUniqueSlug(ctx context.Context, repo repository.RaceRepository, base, ignoreRaceID string) (string, error) {
	cleaned := strings.Trim(truncateRunes(strings.Trim(base, "-"), maxSlugLength), "-")
	if cleaned == "" {
		cleaned = randomSlug()
	}

	candidate := cleaned
	for attempt := 1; ; attempt++ {
		taken, err := repo.SlugExists(ctx, candidate, ignoreRaceID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}

		suffix := fmt.Sprintf("-%d", attempt+1)
		keep := maxSlugLength - len(suffix)
		if keep < 1 {
			keep = 1
		}
		candidate = truncateRunes(cleaned, keep) + suffix
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
