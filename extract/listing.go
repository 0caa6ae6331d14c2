package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/harvest/models"
	"golang.org/x/net/html"
)

// Parser turns the rendered markup of a results panel into raw records.
// It is immutable after construction and safe for concurrent use.
type Parser struct {
	sel *compiled
	src Selectors
}

// NewParser compiles the selectors. Every selector must be non-empty and
// valid CSS.
func NewParser(s Selectors) (*Parser, error) {
	c, err := compile(s)
	if err != nil {
		return nil, err
	}
	return &Parser{sel: c, src: s}, nil
}

// Selectors returns the source selectors the parser was built from.
func (p *Parser) Selectors() Selectors {
	return p.src
}

// Parse extracts one RawRecord per listing element found in rawHTML.
// present is false when no listing element matches at all.
func (p *Parser) Parse(rawHTML string) (records []models.RawRecord, present bool, err error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, false, err
	}
	doc := goquery.NewDocumentFromNode(root)

	items := doc.FindMatcher(p.sel.item)
	if items.Length() == 0 {
		return nil, false, nil
	}

	records = make([]models.RawRecord, 0, items.Length())
	items.Each(func(_ int, s *goquery.Selection) {
		records = append(records, p.parseItem(s))
	})
	return records, true, nil
}

// HasContainer reports whether rawHTML contains the results panel.
func (p *Parser) HasContainer(rawHTML string) bool {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return false
	}
	return p.sel.container.MatchFirst(root) != nil
}

func (p *Parser) parseItem(s *goquery.Selection) models.RawRecord {
	rec := models.RawRecord{
		Title:       firstText(s, p.sel.title),
		Address:     firstText(s, p.sel.address),
		Category:    firstText(s, p.sel.category),
		Rating:      firstText(s, p.sel.rating),
		ReviewsText: firstText(s, p.sel.reviews),
	}

	if href, ok := s.FindMatcher(p.sel.website).First().Attr("href"); ok {
		rec.Website = strings.TrimSpace(href)
	}

	s.FindMatcher(p.sel.phone).Each(func(_ int, c *goquery.Selection) {
		if t := strings.TrimSpace(c.Text()); t != "" {
			rec.PhoneCandidates = append(rec.PhoneCandidates, t)
		}
	})
	return rec
}

func firstText(s *goquery.Selection, m goquery.Matcher) string {
	return strings.TrimSpace(s.FindMatcher(m).First().Text())
}
