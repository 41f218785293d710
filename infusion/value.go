// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrMalformed is returned by ParseValue for payloads that are not a finite
// number.
var ErrMalformed = errors.New("malformed value")

// ParseValue decodes a stored reading. Decimal text and JSON numbers (bare or
// quoted) are accepted.
func ParseValue(data []byte) (float64, error) {
	text := bytes.TrimSpace(data)
	if len(text) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrMalformed)
	}

	if text[0] == '"' {
		var s string
		if err := json.Unmarshal(text, &s); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformed, text)
		}
		text = bytes.TrimSpace([]byte(s))
	}

	f, err := strconv.ParseFloat(string(text), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, text)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrMalformed, text)
	}
	return f, nil
}

// FormatRemaining renders an estimated remaining time the way the ward
// display shows it: rounded up to five-minute steps, or "no estimate" when the
// device cannot estimate (negative seconds).
func FormatRemaining(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		return "no estimate"
	}

	minutes := int(math.Ceil(seconds/300)) * 5
	if minutes < 60 {
		return fmt.Sprintf("≤ %d min", minutes)
	}

	hours, mins := minutes/60, minutes%60
	if mins == 0 {
		return fmt.Sprintf("≤ %d h", hours)
	}
	return fmt.Sprintf("≤ %d h %d min", hours, mins)
}
