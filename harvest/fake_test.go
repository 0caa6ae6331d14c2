package harvest

import (
	"context"
	"errors"
	"time"

	"github.com/use-agent/harvest/models"
)

// batch is one scripted extraction result. A nil batch means no listing
// elements are present.
type batch []models.RawRecord

// fakeHandle replays scripted height readings and extraction batches.
// Past the end of a script the last entry repeats.
type fakeHandle struct {
	heights []int
	batches []batch

	heightCalls  int
	extractCalls int
	scrollSteps  []int
	bottomCalls  int

	heightErr error
	onExtract func(call int)
}

func (f *fakeHandle) ScrollHeight(ctx context.Context) (int, error) {
	if f.heightErr != nil {
		return 0, f.heightErr
	}
	i := f.heightCalls
	f.heightCalls++
	if len(f.heights) == 0 {
		return 0, nil
	}
	if i >= len(f.heights) {
		i = len(f.heights) - 1
	}
	return f.heights[i], nil
}

func (f *fakeHandle) ScrollBy(ctx context.Context, px int) error {
	f.scrollSteps = append(f.scrollSteps, px)
	return nil
}

func (f *fakeHandle) ScrollToBottom(ctx context.Context) error {
	f.bottomCalls++
	return nil
}

func (f *fakeHandle) ExtractVisibleItems(ctx context.Context) ([]models.RawRecord, bool, error) {
	i := f.extractCalls
	f.extractCalls++
	if f.onExtract != nil {
		f.onExtract(f.extractCalls)
	}
	if len(f.batches) == 0 {
		return nil, false, nil
	}
	if i >= len(f.batches) {
		i = len(f.batches) - 1
	}
	b := f.batches[i]
	if b == nil {
		return nil, false, nil
	}
	return []models.RawRecord(b), true, nil
}

// recordingSleep captures requested waits and honours cancellation.
type recordingSleep struct {
	waits []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func newTestHarvester(opts Options) (*Harvester, *recordingSleep) {
	rs := &recordingSleep{}
	return New(opts, WithSleep(rs.sleep)), rs
}

var errTransport = errors.New("target closed")

var testQuery = models.Query{Location: "Domlur", Term: "drill machine"}
