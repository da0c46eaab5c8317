// Package langtag wraps x/text/language tags for transcript rows, implementing
// driver.Valuer / sql.Scanner and the pgx v5 text interfaces.
package langtag

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/text/language"
)

type Tag language.Tag

// Und is the undetermined tag, stored as NULL.
var Und = Tag(language.Und)

// Parse parses a BCP 47 tag leniently. Empty input, "auto" (whisper's autodetect marker)
// and unparseable input all yield Und.
func Parse(s string) Tag {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return Und
	}
	tag, err := language.Parse(s)
	if err != nil {
		return Und
	}
	return Tag(tag)
}

func (t Tag) String() string {
	return language.Tag(t).String()
}

// Scan implements the sql.Scanner interface.
func (t *Tag) Scan(value any) error {
	if value == nil {
		*t = Und
		return nil
	}

	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("langtag.Tag.Scan: expected string, got %T", value)
	}

	parsed, err := language.Parse(s)
	if err != nil {
		return err
	}

	*t = Tag(parsed)
	return nil
}

// Value implements the driver.Valuer interface.
func (t Tag) Value() (driver.Value, error) {
	if t == Und {
		return nil, nil
	}
	return t.String(), nil
}

// ScanText implements the pgtype.TextScanner interface for pgx v5.
func (t *Tag) ScanText(v pgtype.Text) error {
	if !v.Valid {
		*t = Und
		return nil
	}
	return t.Scan(v.String)
}

// TextValue implements the pgtype.TextValuer interface for pgx v5.
func (t Tag) TextValue() (pgtype.Text, error) {
	if t == Und {
		return pgtype.Text{Valid: false}, nil
	}
	return pgtype.Text{String: t.String(), Valid: true}, nil
}
