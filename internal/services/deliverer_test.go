package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestDeliverer() *Deliverer {
	return NewDeliverer(5*time.Second, "meetingbots-webhooks/1.0", NewSignatureService(), zap.NewNop())
}

func TestDeliverSetsHeadersAndSignature(t *testing.T) {
	payload := []byte(`{"bot_id":"bot_abc","new_state":"ended"}`)
	sigs := NewSignatureService()

	var gotSig, gotEvent, gotUA, gotCT string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotEvent = r.Header.Get("X-Webhook-Event")
		gotUA = r.Header.Get("User-Agent")
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	out := newTestDeliverer().Deliver(context.Background(), srv.URL, "secret-1", "bot_state_change", payload)

	if !out.Delivered() {
		t.Fatalf("expected success, got status %d err %v", out.StatusCode, out.Err)
	}
	if gotCT != "application/json" {
		t.Errorf("Content-Type = %q", gotCT)
	}
	if gotUA != "meetingbots-webhooks/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotEvent != "bot_state_change" {
		t.Errorf("X-Webhook-Event = %q", gotEvent)
	}
	want := "sha256=" + sigs.Sign("secret-1", payload)
	if gotSig != want {
		t.Errorf("X-Webhook-Signature = %q, want %q", gotSig, want)
	}
	if string(gotBody) != string(payload) {
		t.Error("payload bytes modified in transit")
	}
}

func TestDeliverNon2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	out := newTestDeliverer().Deliver(context.Background(), srv.URL, "s", "bot_state_change", []byte(`{}`))
	if out.Delivered() {
		t.Error("500 response should not count as delivered")
	}
	if out.StatusCode != 500 || out.Body != "boom" {
		t.Errorf("outcome = %d %q", out.StatusCode, out.Body)
	}
}

func TestDeliverTruncatesResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 20000)))
	}))
	defer srv.Close()

	out := newTestDeliverer().Deliver(context.Background(), srv.URL, "s", "bot_state_change", []byte(`{}`))
	if len(out.Body) != maxResponseBodyChars {
		t.Errorf("response body stored with %d chars, want %d", len(out.Body), maxResponseBodyChars)
	}
}

func TestDeliverTransportErrorSetsErr(t *testing.T) {
	out := newTestDeliverer().Deliver(context.Background(), "http://127.0.0.1:1", "s", "bot_state_change", []byte(`{}`))
	if out.Err == nil {
		t.Error("expected transport error")
	}
	if out.Delivered() {
		t.Error("transport error should not count as delivered")
	}
}
