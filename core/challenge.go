package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Challenge is the parsed form of the line-oriented message a client signs.
// Timestamps are kept as raw strings; they are checked for presence at parse
// time and interpreted by Window so that a missing field and an unparseable
// field produce different error kinds.
type Challenge struct {
	Nonce     string
	Domain    string
	ChainID   string
	IssuedAt  string // RFC 3339
	ExpiresIn string // <int>[s|m|h], unit defaults to seconds
}

// ExtractField returns the trimmed value of the first line beginning with
// "<key>:", or the empty string when no such line exists. Later occurrences
// of the same key are ignored.
func ExtractField(message, key string) string {
	prefix := key + ":"
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}

// ParseChallenge validates the presence of every required field and returns
// the typed challenge. A missing or empty field yields ErrMalformedChallenge
// naming the field.
func ParseChallenge(message string) (*Challenge, error) {
	ch := &Challenge{}
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"Nonce", &ch.Nonce},
		{"Domain", &ch.Domain},
		{"ChainId", &ch.ChainID},
		{"IssuedAt", &ch.IssuedAt},
		{"ExpiresIn", &ch.ExpiresIn},
	} {
		v := ExtractField(message, f.key)
		if v == "" {
			return nil, fmt.Errorf("%w: missing field %q", ErrMalformedChallenge, f.key)
		}
		*f.dst = v
	}
	return ch, nil
}

// ParseExpiry parses a duration of the form <int>[s|m|h], with the unit
// defaulting to seconds when omitted. It returns 0 for any other shape;
// callers treat a non-positive duration as invalid.
func ParseExpiry(text string) time.Duration {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	unit := time.Second
	switch text[len(text)-1] {
	case 's':
		text = text[:len(text)-1]
	case 'm':
		unit = time.Minute
		text = text[:len(text)-1]
	case 'h':
		unit = time.Hour
		text = text[:len(text)-1]
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return time.Duration(n) * unit
}

// Window interprets the challenge timestamps and returns the issue time and
// validity duration. It fails when IssuedAt is not RFC 3339 or ExpiresIn is
// not a positive duration.
func (c *Challenge) Window() (time.Time, time.Duration, error) {
	issued, err := time.Parse(time.RFC3339, c.IssuedAt)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: bad IssuedAt: %v", ErrStaleMessage, err)
	}

	dur := ParseExpiry(c.ExpiresIn)
	if dur <= 0 {
		return time.Time{}, 0, fmt.Errorf("%w: bad ExpiresIn %q", ErrStaleMessage, c.ExpiresIn)
	}

	return issued, dur, nil
}

// FreshAt reports whether now falls inside [issued-skew, issued+dur+skew].
// The skew bounds clock drift symmetrically, so a forward-dated message is
// rejected the same way a stale one is.
func (c *Challenge) FreshAt(now time.Time, skew time.Duration) error {
	issued, dur, err := c.Window()
	if err != nil {
		return err
	}

	if now.Before(issued.Add(-skew)) || now.After(issued.Add(dur).Add(skew)) {
		return fmt.Errorf("%w: outside validity window", ErrStaleMessage)
	}
	return nil
}
