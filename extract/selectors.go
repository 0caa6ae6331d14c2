package extract

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// Selectors locate the results panel and the fields inside each listing.
// All values are CSS selectors. Field selectors are matched against the
// descendants of one listing element.
type Selectors struct {
	Container string
	Item      string
	Title     string
	Address   string
	Category  string
	Website   string
	Rating    string
	Reviews   string
	Phone     string
}

// DefaultSelectors returns the selectors for the maps results panel.
func DefaultSelectors() Selectors {
	return Selectors{
		Container: ".m6QErb[aria-label]",
		Item:      ".Nv2PK",
		Title:     ".qBF1Pd",
		Address:   ".W4Efsd:last-child > .W4Efsd:nth-of-type(1) > span:last-child",
		Category:  ".W4Efsd:last-child > .W4Efsd:nth-of-type(1) > span:first-child",
		Website:   "a.lcr4fd",
		Rating:    ".MW4etd",
		Reviews:   ".UY7F9",
		Phone:     "a[href^='tel:'], span.fontBodyMedium",
	}
}

// compiled holds the parsed form of every selector.
type compiled struct {
	container cascadia.Selector
	item      cascadia.Selector
	title     cascadia.Selector
	address   cascadia.Selector
	category  cascadia.Selector
	website   cascadia.Selector
	rating    cascadia.Selector
	reviews   cascadia.Selector
	phone     cascadia.Selector
}

func compile(s Selectors) (*compiled, error) {
	c := &compiled{}
	fields := []struct {
		name string
		src  string
		dst  *cascadia.Selector
	}{
		{"container", s.Container, &c.container},
		{"item", s.Item, &c.item},
		{"title", s.Title, &c.title},
		{"address", s.Address, &c.address},
		{"category", s.Category, &c.category},
		{"website", s.Website, &c.website},
		{"rating", s.Rating, &c.rating},
		{"reviews", s.Reviews, &c.reviews},
		{"phone", s.Phone, &c.phone},
	}

	for _, f := range fields {
		if f.src == "" {
			return nil, fmt.Errorf("extract: %s selector is empty", f.name)
		}
		sel, err := cascadia.Compile(f.src)
		if err != nil {
			return nil, fmt.Errorf("extract: invalid %s selector %q: %w", f.name, f.src, err)
		}
		*f.dst = sel
	}
	return c, nil
}
