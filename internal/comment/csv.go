package comment

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// Required export columns. user_type and user_id are optional.
var requiredColumns = []string{"guest_id", "username", "original_text", "inserted_at"}

// LoadCSV reads a chat export and returns its rows in file order.
// Header names are matched case-insensitively with surrounding whitespace
// and a UTF-8 BOM tolerated. Rows with a blank original_text are kept:
// emoji-only and whitespace comments are still classified.
func LoadCSV(r io.Reader) ([]Comment, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // exports occasionally carry ragged trailing columns

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("CSV is missing required column %q", name)
		}
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var comments []Comment
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row %d: %w", len(comments)+2, err)
		}
		comments = append(comments, Comment{
			Index:      len(comments),
			GuestID:    field(record, "guest_id"),
			Username:   field(record, "username"),
			Text:       field(record, "original_text"),
			InsertedAt: field(record, "inserted_at"),
			UserType:   field(record, "user_type"),
			UserID:     field(record, "user_id"),
		})
	}

	log.Debug().
		Int("rows", len(comments)).
		Bool("has_user_type", has(cols, "user_type")).
		Bool("has_user_id", has(cols, "user_id")).
		Msg("Chat CSV loaded")

	return comments, nil
}

func has(cols map[string]int, name string) bool {
	_, ok := cols[name]
	return ok
}
