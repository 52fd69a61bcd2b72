package forecast

import (
	"fmt"
	"strings"
)

// ParseError reports a timestamp or payload the provider sent that could not
// be decoded.
type ParseError struct {
	What  string // "time", "payload", "value"
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("parse %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("parse %s %q: %v", e.What, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingFieldError reports a requested field absent from a sample. A field
// that is present with a zero or null value is not missing.
type MissingFieldError struct {
	Field     string
	Index     int      // position of the sample in its sequence
	Available []string // fields the sample does carry, when known
}

func (e *MissingFieldError) Error() string {
	msg := fmt.Sprintf("sample %d: missing field %q", e.Index, e.Field)
	if len(e.Available) > 0 {
		msg += " (sample has " + strings.Join(e.Available, ", ") + ")"
	}
	return msg
}
