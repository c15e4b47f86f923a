// Package postcode serves postcode and suburb suggestions from a static table.
package postcode

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"strings"
)

//go:embed postcodes.csv
var rawTable []byte

type Entry struct {
	Postcode string `json:"postcode"`
	Suburb   string `json:"suburb"`
	State    string `json:"state"`
}

type Table struct {
	entries []Entry
}

// Default loads the embedded table.
func Default() (*Table, error) {
	return Parse(rawTable)
}

// Parse reads a postcode,suburb,state CSV with a header row.
func Parse(data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 3
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse postcode table: %w", err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}
	entries := make([]Entry, 0, len(records)-1)
	for _, rec := range records[1:] {
		entries = append(entries, Entry{
			Postcode: strings.TrimSpace(rec[0]),
			Suburb:   strings.TrimSpace(rec[1]),
			State:    strings.TrimSpace(rec[2]),
		})
	}
	return &Table{entries: entries}, nil
}

// Search returns up to limit entries whose postcode or suburb starts with
// query, case-insensitively, in table order.
func (t *Table) Search(query string, limit int) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}
	var out []Entry
	for _, e := range t.entries {
		if strings.HasPrefix(e.Postcode, q) || strings.HasPrefix(strings.ToLower(e.Suburb), q) {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func (t *Table) Len() int { return len(t.entries) }
