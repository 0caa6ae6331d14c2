package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDeliver_SignsBody(t *testing.T) {
	const secret = "s3cret"
	var (
		gotSig  string
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(srv.URL, secret)
	ev := NewEvent(EventHarvestCompleted, "run-1", map[string]int{"records": 12})
	if err := n.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if want := "sha256=" + Sign(secret, gotBody); gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
	var decoded Event
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != EventHarvestCompleted || decoded.RunID != "run-1" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(SignatureHeader) != "" {
			t.Error("unexpected signature header")
		}
	}))
	defer srv.Close()

	if err := New(srv.URL, "").Deliver(context.Background(), NewEvent(EventRunCompleted, "", nil)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
}

func TestDeliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := New(srv.URL, "").Deliver(context.Background(), NewEvent(EventHarvestFailed, "", nil)); err == nil {
		t.Fatal("expected an error for a 502")
	}
}

func TestNotify_Retries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, "")
	n.Retries = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}

	select {
	case <-n.Notify(NewEvent(EventHarvestCompleted, "", nil)):
	case <-time.After(5 * time.Second):
		t.Fatal("Notify did not finish")
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}
