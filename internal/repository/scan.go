package repository

import (
	"fmt"
	"time"

	"ads-api/internal/domain"
)

// Layouts SQLite may hand back for TIMESTAMP columns stored as text.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// nullTime scans timestamps from drivers that return time.Time as well as
// from drivers that return text.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (nt *nullTime) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		nt.Time, nt.Valid = time.Time{}, false
		return nil
	case time.Time:
		nt.Time, nt.Valid = v, true
		return nil
	case string:
		return nt.parse(v)
	case []byte:
		return nt.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", value)
	}
}

func (nt *nullTime) parse(s string) error {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			nt.Time, nt.Valid = t, true
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

var advertisementColumns = []string{"id", "title", "description", "created_at", "owner"}

func scanAdvertisement(row rowScanner) (*domain.Advertisement, error) {
	var (
		ad        domain.Advertisement
		createdAt nullTime
	)

	if err := row.Scan(&ad.ID, &ad.Title, &ad.Description, &createdAt, &ad.Owner); err != nil {
		return nil, err
	}

	if createdAt.Valid {
		t := createdAt.Time.UTC()
		ad.CreatedAt = &t
	}
	return &ad, nil
}
