// Package supplier searches the external supplier directory. The
// directory lives in a separate database owned by another system; we
// read it over database/sql and copy code + name onto protocols as
// plain strings, never as foreign keys.
package supplier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

var ErrTermTooShort = errors.New("supplier: search term must have at least 2 characters")

const (
	minTermLength = 2
	defaultLimit  = 20
)

type Supplier struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Directory struct {
	db      *sql.DB
	timeout time.Duration
	limit   int
}

func Open(dsn string, timeout time.Duration, limit int) (*Directory, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open supplier directory: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Directory{db: db, timeout: timeout, limit: limit}, nil
}

func (d *Directory) Close() error {
	return d.db.Close()
}

func (d *Directory) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Term length counts runes, not bytes; two accented characters are a
// valid term.
func normalizeTerm(term string) (string, error) {
	term = strings.TrimSpace(term)
	if len([]rune(term)) < minTermLength {
		return "", ErrTermTooShort
	}
	return term, nil
}

// Search matches the term against supplier code and name,
// case-insensitively. Results are capped; the directory holds tens of
// thousands of rows and the caller is a typeahead box.
func (d *Directory) Search(ctx context.Context, term string) ([]Supplier, error) {
	term, err := normalizeTerm(term)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	pattern := "%" + term + "%"
	rows, err := d.db.QueryContext(ctx,
		`SELECT code, name FROM suppliers
		 WHERE code ILIKE $1 OR name ILIKE $1
		 ORDER BY name ASC
		 LIMIT $2`,
		pattern, d.limit)
	if err != nil {
		return nil, fmt.Errorf("search suppliers: %w", err)
	}
	defer rows.Close()

	var result []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.Code, &s.Name); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
