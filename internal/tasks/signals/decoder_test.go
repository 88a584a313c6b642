package signals

import (
	"testing"
	"time"
)

func TestDecoderJSON(t *testing.T) {
	decoder := newEventDecoder()
	payload := []byte(`{"user_id":"7b61d0ed-1111-4c3e-9d93-aaaaaaaaaaaa","content_id":"8c22ebce-2222-4e87-bbbb-bbbbbbbbbbbb","kind":"View","duration_ms":4500,"progress_pct":37,"occurred_at":"2026-08-20T12:00:00Z"}`)

	evt, err := decoder.Decode(payload)
	if err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if evt.UserID != "7b61d0ed-1111-4c3e-9d93-aaaaaaaaaaaa" {
		t.Fatalf("unexpected user id: %s", evt.UserID)
	}
	if evt.Kind != "view" {
		t.Fatalf("expected lowercased kind, got %s", evt.Kind)
	}
	if evt.DurationMs != 4500 {
		t.Fatalf("unexpected duration: %d", evt.DurationMs)
	}
	want := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	if !evt.OccurredAt.Equal(want) {
		t.Fatalf("unexpected occurred_at: %s", evt.OccurredAt)
	}
	if evt.Version != EventVersion {
		t.Fatalf("expected version fallback, got %s", evt.Version)
	}
}

func TestDecoderMalformedPayload(t *testing.T) {
	decoder := newEventDecoder()
	if _, err := decoder.Decode([]byte("not-json")); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestDecoderMissingRequiredFields(t *testing.T) {
	decoder := newEventDecoder()
	if _, err := decoder.Decode([]byte(`{"user_id":"u"}`)); err == nil {
		t.Fatalf("expected error for missing content_id/kind")
	}
}

func TestDecoderNormalizesBounds(t *testing.T) {
	decoder := newEventDecoder()
	payload := []byte(`{"user_id":" u ","content_id":"c","kind":" LIKE ","duration_ms":-5,"progress_pct":140}`)

	evt, err := decoder.Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.UserID != "u" || evt.ContentID != "c" {
		t.Fatalf("expected trimmed identifiers, got %q/%q", evt.UserID, evt.ContentID)
	}
	if evt.Kind != "like" {
		t.Fatalf("expected normalized kind, got %q", evt.Kind)
	}
	if evt.DurationMs != 0 {
		t.Fatalf("expected clamped duration, got %d", evt.DurationMs)
	}
	if evt.ProgressPct != 100 {
		t.Fatalf("expected clamped progress, got %d", evt.ProgressPct)
	}
	if evt.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at fallback")
	}
}
