package http

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/lorrc/agent-activity-backend/internal/core/errors"
)

// NormalizeBody unwraps the payload encodings seen on the wire into plain
// JSON. Three shapes occur:
//
//  1. a raw JSON object (the normal case),
//  2. a JSON string whose contents are the JSON object, double-encoded by
//     intermediate proxies,
//  3. an object keyed by numeric indexes whose values are byte values of the
//     serialized JSON, produced by buffer-mangling middleware.
//
// Anything else is malformed.
func NormalizeBody(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, apperrors.ErrMalformedPayload
	}

	switch trimmed[0] {
	case '{':
		if normalized, ok := reassembleByteFragments(trimmed); ok {
			return normalized, nil
		}
		if !json.Valid(trimmed) {
			return nil, apperrors.ErrMalformedPayload
		}
		return trimmed, nil
	case '"':
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, apperrors.ErrMalformedPayload
		}
		// The unwrapped string may itself be index-keyed.
		return NormalizeBody([]byte(inner))
	default:
		return nil, apperrors.ErrMalformedPayload
	}
}

// reassembleByteFragments detects the index-keyed byte shape and rebuilds the
// original JSON in numeric key order. Returns ok=false when the object is not
// of that shape.
func reassembleByteFragments(body []byte) ([]byte, bool) {
	var fragments map[string]json.RawMessage
	if err := json.Unmarshal(body, &fragments); err != nil {
		return nil, false
	}
	if len(fragments) == 0 {
		return nil, false
	}

	indexes := make([]int, 0, len(fragments))
	values := make(map[int]byte, len(fragments))
	for key, raw := range fragments {
		index, err := strconv.Atoi(key)
		if err != nil {
			return nil, false
		}
		value, err := strconv.Atoi(string(raw))
		if err != nil || value < 0 || value > 255 {
			return nil, false
		}
		indexes = append(indexes, index)
		values[index] = byte(value)
	}
	sort.Ints(indexes)

	reassembled := make([]byte, 0, len(indexes))
	for _, index := range indexes {
		reassembled = append(reassembled, values[index])
	}
	if !json.Valid(reassembled) {
		return nil, false
	}
	return reassembled, true
}

// parseSlackTimestamp converts a Slack "seconds.fraction" timestamp into a
// time.Time. The fractional part is a message sequence discriminator, not
// sub-second precision, but it is preserved as microseconds so ordering
// within a second survives.
func parseSlackTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, apperrors.ErrMalformedPayload
	}

	secondsPart, fractionPart, _ := strings.Cut(ts, ".")
	seconds, err := strconv.ParseInt(secondsPart, 10, 64)
	if err != nil {
		return time.Time{}, apperrors.ErrMalformedPayload
	}

	var micros int64
	if fractionPart != "" {
		padded := (fractionPart + "000000")[:6]
		micros, err = strconv.ParseInt(padded, 10, 64)
		if err != nil {
			return time.Time{}, apperrors.ErrMalformedPayload
		}
	}

	return time.Unix(seconds, micros*int64(time.Microsecond)).UTC(), nil
}
