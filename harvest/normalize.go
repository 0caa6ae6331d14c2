package harvest

import (
	"regexp"
	"strings"

	"github.com/use-agent/harvest/models"
)

// phoneShape is a loose phone number: optional leading '+', then digits,
// spaces and hyphens.
var phoneShape = regexp.MustCompile(`^\+?\d[\d\s-]{6,}$`)

// minPhoneDigits is the minimum digit count for a fragment to be a phone.
const minPhoneDigits = 7

// Normalize maps a raw listing plus its query into the output schema.
// Missing fields come out as empty strings.
func Normalize(raw models.RawRecord, q models.Query) models.NormalizedRecord {
	candidates := make([]string, 0, len(raw.PhoneCandidates)+1)
	candidates = append(candidates, raw.Phone)
	candidates = append(candidates, raw.PhoneCandidates...)

	return models.NormalizedRecord{
		Title:      strings.TrimSpace(raw.Title),
		Address:    stripSeparators(raw.Address),
		Website:    strings.TrimSpace(raw.Website),
		Category:   stripSeparators(raw.Category),
		Phone:      PickPhone(candidates...),
		Rating:     strings.TrimSpace(raw.Rating),
		Reviews:    strings.TrimSpace(strings.NewReplacer("(", "", ")", "").Replace(raw.ReviewsText)),
		Location:   q.Location,
		SearchTerm: q.Term,
	}
}

// NormalizeAll applies Normalize to every item of a batch.
func NormalizeAll(items []models.RawRecord, q models.Query) []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, len(items))
	for i, raw := range items {
		out[i] = Normalize(raw, q)
	}
	return out
}

// PickPhone returns the first fragment shaped like a phone number with at
// least seven digits, trimmed, or "" when none qualifies.
func PickPhone(fragments ...string) string {
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if f == "" || !phoneShape.MatchString(f) {
			continue
		}
		if countDigits(f) >= minPhoneDigits {
			return f
		}
	}
	return ""
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// stripSeparators removes the "·" glyphs the results panel puts between
// inline fields.
func stripSeparators(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "·", ""))
}
