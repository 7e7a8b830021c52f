package cookie

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func sampleReport() *Report {
	return &Report{
		TestID:       "t1",
		Variant:      "b",
		ErrorType:    "js_error",
		ErrorMessage: "x is not defined",
		Browser:      "Chrome",
		Timestamp:    time.Date(2026, 1, 17, 10, 0, 0, 0, time.UTC),
	}
}

func TestDecode_Verbose(t *testing.T) {
	raw := url.QueryEscape(`{"test_id":"t1","variant":"b","error_type":"js_error","error_message":"x","browser":"Chrome","timestamp":"2026-01-17T10:00:00Z"}`)

	report, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TestID != "t1" || report.Variant != "b" {
		t.Errorf("unexpected identity fields: %+v", report)
	}
	if report.ErrorType != "js_error" || report.Browser != "Chrome" {
		t.Errorf("unexpected error fields: %+v", report)
	}
	want := time.Date(2026, 1, 17, 10, 0, 0, 0, time.UTC)
	if !report.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, report.Timestamp)
	}
}

func TestDecode_Compact(t *testing.T) {
	raw := url.QueryEscape(`{"t":"t1","v":"b","e":"js","m":"x","b":"c","ts":1768644000}`)

	report, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.ErrorType != "js_error" {
		t.Errorf("expected error type code expansion, got %q", report.ErrorType)
	}
	if report.Browser != "Chrome" {
		t.Errorf("expected browser code expansion, got %q", report.Browser)
	}
	if report.Timestamp.Unix() != 1768644000 {
		t.Errorf("expected unix timestamp 1768644000, got %d", report.Timestamp.Unix())
	}
}

// Encoding the same logical report compact and verbose must decode to
// identical canonical fields.
func TestRoundTrip_CompactMatchesVerbose(t *testing.T) {
	original := sampleReport()

	fromVerbose, err := Decode(Encode(original))
	if err != nil {
		t.Fatalf("verbose round trip failed: %v", err)
	}
	fromCompact, err := Decode(EncodeCompact(original))
	if err != nil {
		t.Fatalf("compact round trip failed: %v", err)
	}

	if fromVerbose.TestID != fromCompact.TestID ||
		fromVerbose.Variant != fromCompact.Variant ||
		fromVerbose.ErrorType != fromCompact.ErrorType ||
		fromVerbose.ErrorMessage != fromCompact.ErrorMessage ||
		fromVerbose.Browser != fromCompact.Browser ||
		!fromVerbose.Timestamp.Equal(fromCompact.Timestamp) {
		t.Errorf("round trips disagree:\nverbose: %+v\ncompact: %+v", fromVerbose, fromCompact)
	}
}

func TestDecode_UnknownCodesPassThrough(t *testing.T) {
	raw := url.QueryEscape(`{"t":"t1","v":"a","e":"zz","m":"boom","b":"brave","ts":1768644000}`)

	report, err := Decode(raw)
	if err != nil {
		t.Fatalf("unknown codes must not fail decoding: %v", err)
	}
	if report.ErrorType != "zz" {
		t.Errorf("expected opaque error type %q, got %q", "zz", report.ErrorType)
	}
	if report.Browser != "brave" {
		t.Errorf("expected opaque browser %q, got %q", "brave", report.Browser)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", url.QueryEscape(`{"test_id":`)},
		{"not an object", url.QueryEscape(`[1,2,3]`)},
		{"missing verbose field", url.QueryEscape(`{"test_id":"t1","variant":"b"}`)},
		{"missing compact field", url.QueryEscape(`{"t":"t1","ts":1768644000}`)},
		{"wrong field type", url.QueryEscape(`{"test_id":1,"variant":"b","error_type":"e","error_message":"m","browser":"c","timestamp":"2026-01-17T10:00:00Z"}`)},
		{"bad timestamp", url.QueryEscape(`{"test_id":"t1","variant":"b","error_type":"e","error_message":"m","browser":"c","timestamp":"yesterday"}`)},
		{"bad percent encoding", "%zzz"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Decode(tt.raw)
			if err == nil {
				t.Fatalf("expected error, got report %+v", report)
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 600)

	got := Truncate(long, 500)
	if len([]rune(got)) != 500 {
		t.Errorf("expected length 500, got %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, TruncationMarker()) {
		t.Errorf("expected truncation marker suffix, got %q", got[len(got)-10:])
	}

	short := "fine"
	if Truncate(short, 500) != short {
		t.Errorf("short strings must pass through unchanged")
	}

	exact := strings.Repeat("b", 500)
	if Truncate(exact, 500) != exact {
		t.Errorf("strings at the bound must pass through unchanged")
	}
}
