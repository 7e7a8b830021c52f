// Package cookie decodes the signaling cookie written by client-side
// A/B test code. Two wire shapes are accepted: a verbose object with
// explicit field names and a compact object with single/double-letter
// keys and coded enums.
package cookie

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"
)

var ErrMalformed = errors.New("malformed failure report")

// Report is the canonical decoded failure report.
type Report struct {
	TestID       string    `json:"test_id"`
	Variant      string    `json:"variant"`
	ErrorType    string    `json:"error_type"`
	ErrorMessage string    `json:"error_message"`
	Browser      string    `json:"browser"`
	Timestamp    time.Time `json:"timestamp"`
}

// Compact error-type codes emitted by the client SDK. Unknown codes
// pass through verbatim so newer SDKs keep working against older servers.
var errorTypeCodes = map[string]string{
	"js": "js_error",
	"ne": "network_error",
	"as": "assertion_failed",
	"to": "timeout",
	"re": "render_error",
	"ex": "exception",
}

var browserCodes = map[string]string{
	"c": "Chrome",
	"f": "Firefox",
	"s": "Safari",
	"e": "Edge",
	"o": "Opera",
}

type verboseReport struct {
	TestID       *string `json:"test_id"`
	Variant      *string `json:"variant"`
	ErrorType    *string `json:"error_type"`
	ErrorMessage *string `json:"error_message"`
	Browser      *string `json:"browser"`
	Timestamp    *string `json:"timestamp"`
}

type compactReport struct {
	T  *string `json:"t"`
	V  *string `json:"v"`
	E  *string `json:"e"`
	M  *string `json:"m"`
	B  *string `json:"b"`
	TS *int64  `json:"ts"`
}

// Decode parses a raw cookie value into a canonical report. The value
// is URL-percent-encoded JSON. Any decoding failure returns an error
// wrapping ErrMalformed; callers treat that as "no valid report" and
// must not escalate it.
func Decode(raw string) (*Report, error) {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad percent encoding: %v", ErrMalformed, err)
	}

	if isCompact(decoded) {
		return decodeCompact(decoded)
	}
	return decodeVerbose(decoded)
}

// Compact detection keys off the short-named timestamp field.
func isCompact(decoded string) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(decoded), &probe); err != nil {
		return false
	}
	_, ok := probe["ts"]
	return ok
}

func decodeVerbose(decoded string) (*Report, error) {
	var v verboseReport
	if err := json.Unmarshal([]byte(decoded), &v); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrMalformed, err)
	}

	if v.TestID == nil || v.Variant == nil || v.ErrorType == nil ||
		v.ErrorMessage == nil || v.Browser == nil || v.Timestamp == nil {
		return nil, fmt.Errorf("%w: missing required field in verbose report", ErrMalformed)
	}

	ts, err := time.Parse(time.RFC3339, *v.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid timestamp %q: %v", ErrMalformed, *v.Timestamp, err)
	}

	return &Report{
		TestID:       *v.TestID,
		Variant:      *v.Variant,
		ErrorType:    *v.ErrorType,
		ErrorMessage: *v.ErrorMessage,
		Browser:      *v.Browser,
		Timestamp:    ts,
	}, nil
}

func decodeCompact(decoded string) (*Report, error) {
	var c compactReport
	if err := json.Unmarshal([]byte(decoded), &c); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrMalformed, err)
	}

	if c.T == nil || c.V == nil || c.E == nil || c.M == nil || c.B == nil || c.TS == nil {
		return nil, fmt.Errorf("%w: missing required field in compact report", ErrMalformed)
	}

	return &Report{
		TestID:       *c.T,
		Variant:      *c.V,
		ErrorType:    expandCode(errorTypeCodes, *c.E),
		ErrorMessage: *c.M,
		Browser:      expandCode(browserCodes, *c.B),
		Timestamp:    time.Unix(*c.TS, 0).UTC(),
	}, nil
}

func expandCode(table map[string]string, code string) string {
	if canonical, ok := table[code]; ok {
		return canonical
	}
	return code
}

// Encode renders a report in the verbose wire shape, percent-encoded.
func Encode(r *Report) string {
	data, _ := json.Marshal(map[string]string{
		"test_id":       r.TestID,
		"variant":       r.Variant,
		"error_type":    r.ErrorType,
		"error_message": r.ErrorMessage,
		"browser":       r.Browser,
		"timestamp":     r.Timestamp.UTC().Format(time.RFC3339),
	})
	return url.QueryEscape(string(data))
}

// EncodeCompact renders a report in the compact wire shape, percent-encoded.
// Fields without a known code are emitted verbatim.
func EncodeCompact(r *Report) string {
	data, _ := json.Marshal(map[string]any{
		"t":  r.TestID,
		"v":  r.Variant,
		"e":  compressCode(errorTypeCodes, r.ErrorType),
		"m":  r.ErrorMessage,
		"b":  compressCode(browserCodes, r.Browser),
		"ts": r.Timestamp.Unix(),
	})
	return url.QueryEscape(string(data))
}

func compressCode(table map[string]string, canonical string) string {
	for code, value := range table {
		if value == canonical {
			return code
		}
	}
	return canonical
}

const truncationMarker = "..."

// Truncate clamps s to max runes, replacing the tail with the
// truncation marker. Applied to error messages before persistence.
func Truncate(s string, max int) string {
	if max <= len(truncationMarker) {
		max = len(truncationMarker) + 1
	}

	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max-len(truncationMarker)]) + truncationMarker
}

// TruncationMarker returns the marker appended by Truncate.
func TruncationMarker() string {
	return truncationMarker
}
