package scraper

import (
	"strings"

	"github.com/use-agent/harvest/models"
)

// SearchURL builds the results URL for a query: the location and term are
// joined with a space and every whitespace run becomes '+'.
func SearchURL(base string, q models.Query) string {
	return base + strings.Join(strings.Fields(q.String()), "+")
}
