package scraper

import (
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

func TestPageHealth_Scoring(t *testing.T) {
	h := &pageHealth{created: time.Now()}
	h.record(false)
	h.record(false)
	h.record(true)
	if h.errScore != 1.5 {
		t.Errorf("errScore = %v, want 1.5", h.errScore)
	}
	for i := 0; i < 5; i++ {
		h.record(true)
	}
	if h.errScore != 0 {
		t.Errorf("errScore = %v, want floor 0", h.errScore)
	}
	if h.uses != 8 {
		t.Errorf("uses = %d, want 8", h.uses)
	}
}

func TestHealthBook_Release(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	book := newHealthBook()
	book.now = func() time.Time { return now }
	const id = proto.TargetTargetID("page-1")

	t.Run("three failures retire", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if book.release(id, false) {
				t.Fatalf("retired after %d failures", i+1)
			}
		}
		if !book.release(id, false) {
			t.Fatal("expected retirement after the third failure")
		}
		if _, tracked := book.pages[id]; tracked {
			t.Error("retired page should be forgotten")
		}
	})

	t.Run("age retires", func(t *testing.T) {
		if book.release(id, true) {
			t.Fatal("fresh page retired")
		}
		now = now.Add(maxPageAge)
		if !book.release(id, true) {
			t.Error("expected retirement by age")
		}
	})

	t.Run("use count retires", func(t *testing.T) {
		var retired bool
		for i := 0; i < maxPageUses && !retired; i++ {
			retired = book.release("page-2", true)
			if retired && i != maxPageUses-1 {
				t.Fatalf("retired after %d uses", i+1)
			}
		}
		if !retired {
			t.Error("expected retirement by use count")
		}
	})
}
