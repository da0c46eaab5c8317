package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Metadata is the free-form item metadata reported by the acquirer (yt-dlp fields such as
// title, uploader, upload_date), stored in a JSONB column and merged on every upsert.
type Metadata map[string]any

// String returns the trimmed string value for key, or "" when missing or not a string.
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// Scan implements sql.Scanner for reading from the database.
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("db.Metadata.Scan: expected []byte or string, got %T", value)
	}
}

// Value implements driver.Valuer for writing to the database.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(m))
}

// ScanText implements the pgtype.TextScanner interface for pgx v5.
func (m *Metadata) ScanText(v pgtype.Text) error {
	if !v.Valid {
		*m = Metadata{}
		return nil
	}
	return json.Unmarshal([]byte(v.String), m)
}

// TextValue implements the pgtype.TextValuer interface for pgx v5.
func (m Metadata) TextValue() (pgtype.Text, error) {
	if m == nil {
		return pgtype.Text{String: "{}", Valid: true}, nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return pgtype.Text{}, err
	}
	return pgtype.Text{String: string(b), Valid: true}, nil
}
