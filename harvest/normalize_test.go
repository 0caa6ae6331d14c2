package harvest

import (
	"testing"

	"github.com/use-agent/harvest/models"
)

func TestNormalize_MissingFieldsAreEmpty(t *testing.T) {
	raw := models.RawRecord{
		Title:       "Sri Hardware",
		Address:     "12 MG Road",
		Category:    "Hardware store",
		Rating:      "4.2",
		ReviewsText: "(87)",
	}

	got := Normalize(raw, testQuery)

	want := models.NormalizedRecord{
		Title:      "Sri Hardware",
		Address:    "12 MG Road",
		Website:    "",
		Category:   "Hardware store",
		Phone:      "",
		Rating:     "4.2",
		Reviews:    "87",
		Location:   "Domlur",
		SearchTerm: "drill machine",
	}
	if got != want {
		t.Errorf("Normalize() =\n %+v\nwant\n %+v", got, want)
	}
}

func TestNormalize_CleansPanelFormatting(t *testing.T) {
	raw := models.RawRecord{
		Title:       "  Tool Point \n",
		Address:     "· 4th Cross, Indiranagar",
		Category:    "Tool store ·",
		ReviewsText: " (1,204) ",
		Website:     " https://toolpoint.example ",
	}

	got := Normalize(raw, testQuery)

	if got.Title != "Tool Point" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Address != "4th Cross, Indiranagar" {
		t.Errorf("address = %q", got.Address)
	}
	if got.Category != "Tool store" {
		t.Errorf("category = %q", got.Category)
	}
	if got.Reviews != "1,204" {
		t.Errorf("reviews = %q", got.Reviews)
	}
	if got.Website != "https://toolpoint.example" {
		t.Errorf("website = %q", got.Website)
	}
}

func TestNormalize_PhoneFromCandidates(t *testing.T) {
	raw := models.RawRecord{
		Title:           "Sri Hardware",
		PhoneCandidates: []string{"Open 24 hours", "Hardware store", "+91 98450 12345", "080 2345 6789"},
	}

	got := Normalize(raw, testQuery)
	if got.Phone != "+91 98450 12345" {
		t.Errorf("phone = %q, want first phone-shaped candidate", got.Phone)
	}
}

func TestPickPhone(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      string
	}{
		{"none", nil, ""},
		{"international", []string{"+91 80 4123 4567"}, "+91 80 4123 4567"},
		{"hyphenated", []string{"080-2345-6789"}, "080-2345-6789"},
		{"trimmed", []string{"  098450 12345  "}, "098450 12345"},
		{"too few digits", []string{"12 - 34 - 5"}, ""},
		{"short", []string{"12345"}, ""},
		{"letters", []string{"Call 98450 12345"}, ""},
		{"rating not phone", []string{"4.5"}, ""},
		{"first match wins", []string{"Closed", "98450 12345", "+1 555 0100 200"}, "98450 12345"},
		{"plus must lead", []string{"98450+12345"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PickPhone(tt.fragments...); got != tt.want {
				t.Errorf("PickPhone(%q) = %q, want %q", tt.fragments, got, tt.want)
			}
		})
	}
}
