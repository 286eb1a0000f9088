package schema

import (
	"strconv"
	"strings"
	"time"
)

// Layouts tried, in order, when date parsing is enabled. Datetimes separate
// date and time with 'T' or a space; the space form is what the CSV writer
// emits.
var (
	dateLayouts     = []string{"2006-01-02"}
	datetimeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04",
	}
)

// Guess narrows the dtype of one column from sampled values. The zero value
// has seen nothing and resolves to Utf8.
type Guess struct {
	dt   DType
	seen bool
}

// Observe folds the dtype of one non-null sample into the guess.
func (g *Guess) Observe(dt DType) {
	if !g.seen {
		g.dt, g.seen = dt, true
		return
	}
	g.dt = widen(g.dt, dt)
}

// Seen reports whether any sample was observed.
func (g *Guess) Seen() bool { return g.seen }

// Result returns the inferred dtype.
func (g *Guess) Result() DType {
	if !g.seen {
		return Utf8
	}
	return g.dt
}

// widen returns the narrowest dtype that can hold values of both a and b.
func widen(a, b DType) DType {
	if a == b {
		return a
	}
	switch {
	case isNumeric(a) && isNumeric(b):
		return Float64
	case a.Kind == KindDate && b.Kind == KindDatetime:
		return b
	case a.Kind == KindDatetime && b.Kind == KindDate:
		return a
	case a.Kind == KindDatetime && b.Kind == KindDatetime:
		if a.Unit > b.Unit {
			return a
		}
		return b
	default:
		return Utf8
	}
}

func isNumeric(d DType) bool {
	return d.Kind == KindInt64 || d.Kind == KindFloat64
}

// InferText returns the dtype a single delimited-text cell parses as.
func InferText(value string, parseDates bool) DType {
	switch value {
	case "true", "True", "TRUE", "false", "False", "FALSE":
		return Boolean
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return Int64
	}
	// Reject the special spellings ParseFloat accepts (nan, inf, hex floats).
	if !strings.ContainsAny(value, "nNiIxXpP_") {
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			return Float64
		}
	}
	if parseDates {
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, value); err == nil {
				return Date
			}
		}
		for _, layout := range datetimeLayouts {
			if _, err := time.Parse(layout, value); err == nil {
				return DatetimeMicros
			}
		}
	}
	return Utf8
}
