package db

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// UUIDString formats a pgtype.UUID, returning "" when it is NULL.
func UUIDString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// ParseUUID parses s into a pgtype.UUID; invalid input yields a NULL UUID.
func ParseUUID(s string) pgtype.UUID {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

// DateFromYYYYMMDD converts yt-dlp's upload_date ("20240131") into a pgtype.Date.
func DateFromYYYYMMDD(s string) pgtype.Date {
	t, err := time.Parse("20060102", strings.TrimSpace(s))
	if err != nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t, Valid: true}
}
