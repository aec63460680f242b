package normalize

import (
	"fmt"
	"strings"
)

// SchemaError reports required canonical columns missing after renaming.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "schema: missing required fields: " + strings.Join(e.Missing, ", ")
}

// DateParseError reports a date cell that could not be parsed.
// Row is the zero-based index of the offending row.
type DateParseError struct {
	Row   int
	Value string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("date: rows[%d]: cannot parse %q as a calendar date", e.Row, e.Value)
}

// ValueError reports a cell whose value cannot be used for its field:
// a blank entity id, a measurement that is not a finite number, or a negative
// output or energy reading.
type ValueError struct {
	Row    int
	Field  string
	Value  string
	Reason string
}

// Reasons carried by ValueError.
const (
	ReasonBlank     = "is blank"
	ReasonNotNumber = "is not a finite number"
	ReasonNegative  = "is negative"
)

func (e *ValueError) Error() string {
	if e.Reason == ReasonBlank || (e.Reason == "" && e.Value == "") {
		return fmt.Sprintf("value: rows[%d].%s is blank", e.Row, e.Field)
	}
	reason := e.Reason
	if reason == "" {
		reason = ReasonNotNumber
	}
	return fmt.Sprintf("value: rows[%d].%s: %q %s", e.Row, e.Field, e.Value, reason)
}
