package util

import (
	"database/sql"
	"time"
)

// NullTimeFromPtr converts an optional time to sql.NullTime. nil and the zero time are NULL.
func NullTimeFromPtr(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// PtrFromNullTime converts sql.NullTime back to an optional time.
func PtrFromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
