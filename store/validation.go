package store

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format accepted in requests.
const DateLayout = "2006-01-02"

// ValidationError reports a field that failed a check before reaching the database.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ParseDate parses a YYYY-MM-DD value. An empty value yields nil.
func ParseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return nil, &ValidationError{Field: field, Message: "expected a date in YYYY-MM-DD format"}
	}
	return &t, nil
}
