package constants

import (
	"fmt"
	"strings"
)

// TimestampFormat selects the unit used when reporting process times.
type TimestampFormat string

const (
	TimestampSeconds      TimestampFormat = "s"
	TimestampMilliseconds TimestampFormat = "ms"
	TimestampHMS          TimestampFormat = "hms"
)

// DefaultTimestampFormat is used when a caller does not pick one.
const DefaultTimestampFormat = TimestampSeconds

func (f TimestampFormat) Valid() bool {
	switch f {
	case TimestampSeconds, TimestampMilliseconds, TimestampHMS:
		return true
	}
	return false
}

// ParseTimestampFormat accepts s, ms or hms (case-insensitive).
func ParseTimestampFormat(s string) (TimestampFormat, error) {
	f := TimestampFormat(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown timestamp format %q (want s, ms or hms)", s)
	}
	return f, nil
}
