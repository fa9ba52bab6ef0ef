package sqlstore

import (
	"fmt"
	"time"
)

// textTimeLayout is fixed width so stored values sort chronologically.
const textTimeLayout = "2006-01-02T15:04:05.000000000Z"

// parseRFC3339 parses the timestamp strings stored in SQLite.
func parseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlstore: parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// dbTime scans a timestamp column from either driver: SQLite hands back
// TEXT, Postgres a time.Time.
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time, d.Valid = time.Time{}, false
		return nil
	case time.Time:
		d.Time, d.Valid = v.UTC(), true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("sqlstore: cannot scan %T into a timestamp", src)
}

func (d *dbTime) parse(s string) error {
	t, err := parseRFC3339(s)
	if err != nil {
		return err
	}
	d.Time, d.Valid = t, true
	return nil
}

func (d dbTime) Ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}
