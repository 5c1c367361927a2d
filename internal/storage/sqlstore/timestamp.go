package sqlstore

import (
	"database/sql"
	"fmt"
	"time"
)

const timeLayout = time.RFC3339Nano

// Layouts accepted on read. The space separated forms cover rows written by
// SQLite drivers and by older Python based tooling.
var readLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func timeValue(t time.Time) any {
	return t.UTC().Format(timeLayout)
}

func nullTimeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeValue(*t)
}

func parseTime(src any) (time.Time, bool, error) {
	switch v := src.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return v.UTC(), true, nil
	case string:
		return parseTimeString(v)
	case []byte:
		return parseTimeString(string(v))
	default:
		return time.Time{}, false, fmt.Errorf("cannot scan %T into time", src)
	}
}

func parseTimeString(s string) (time.Time, bool, error) {
	if s == "" {
		return time.Time{}, false, nil
	}
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized time %q", s)
}

type timeScanner struct{ dest *time.Time }

func (s timeScanner) Scan(src any) error {
	t, _, err := parseTime(src)
	if err != nil {
		return err
	}
	*s.dest = t
	return nil
}

type nullTimeScanner struct{ dest **time.Time }

func (s nullTimeScanner) Scan(src any) error {
	t, ok, err := parseTime(src)
	if err != nil {
		return err
	}
	if !ok {
		*s.dest = nil
		return nil
	}
	*s.dest = &t
	return nil
}

// zeroIDValue stores the unset id 0 as NULL so foreign keys hold.
func zeroIDValue(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

type zeroIDScanner struct{ dest *int64 }

func (s zeroIDScanner) Scan(src any) error {
	var n sql.NullInt64
	if err := n.Scan(src); err != nil {
		return err
	}
	*s.dest = n.Int64
	return nil
}

type stringScanner struct{ dest *string }

func (s stringScanner) Scan(src any) error {
	var n sql.NullString
	if err := n.Scan(src); err != nil {
		return err
	}
	*s.dest = n.String
	return nil
}
