package sequence

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/prototrack/prototrack/pkg/model"
)

// Protocol numbers are formatted as YYYY-NNNNNN with a per-year
// sequence. The next number is computed from the current max inside
// the caller's transaction; the unique index on protocols.number is the
// final backstop against concurrent duplicates.

func Format(year, seq int) string {
	return fmt.Sprintf("%04d-%06d", year, seq)
}

// Parse extracts the sequence part of a protocol number. It returns
// false for anything that does not look like prefix-sequence.
func Parse(number string) (int, bool) {
	parts := strings.SplitN(number, "-", 2)
	if len(parts) != 2 {
		return 0, false
	}
	seq, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return seq, true
}

// Next computes the next protocol number for the year using tx. It must
// run inside the same transaction that inserts the protocol. A stored
// number that fails to parse resets the sequence to 1: availability is
// preferred over strictness here, and the unique constraint still
// rejects an actual duplicate.
func Next(tx *gorm.DB, year int) (string, error) {
	// MAX over zero rows is SQL NULL, so the very first protocol of a
	// year scans into the null string and starts the sequence at 1.
	var current sql.NullString
	err := tx.Model(&model.Protocol{}).
		Select("MAX(number)").
		Where("number LIKE ?", fmt.Sprintf("%04d-%%", year)).
		Scan(&current).Error
	if err != nil {
		return "", fmt.Errorf("query max protocol number: %w", err)
	}

	seq := 1
	if current.Valid && current.String != "" {
		if last, ok := Parse(current.String); ok {
			seq = last + 1
		}
	}

	return Format(year, seq), nil
}
