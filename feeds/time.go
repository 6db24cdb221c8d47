package feeds

import (
	"strings"
	"time"
)

// Time unmarshals the timestamp flavours the upstream APIs emit: full
// RFC3339, RFC3339 without seconds, and bare dates.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTime tries every known layout and returns the last parse error.
func ParseTime(s string) (time.Time, error) {
	var parseErr error
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			return parsed, nil
		}
		parseErr = err
	}
	return time.Time{}, parseErr
}
