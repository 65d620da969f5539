// Package history reads and writes the listing history as CSV and persists
// it only when its content changed.
package history

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/JakeFAU/roomwatch/internal/listing"
)

// Header is the fixed column order of the history file.
var Header = []string{"id", "title", "posted_at", "listing_type", "link", "status"}

// Encode renders listings in the persisted CSV form, in the given order.
func Encode(listings []listing.Listing) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, l := range listings {
		row := []string{
			strconv.FormatInt(l.ID, 10),
			l.Title,
			listing.FormatTimestamp(l.PostedAt),
			string(l.Type),
			l.Link,
			string(l.Status),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", l.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a history file. Every row must form a valid listing;
// the first bad row fails the whole decode. Empty input is an empty history.
func Decode(data []byte) ([]listing.Listing, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(Header)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var out []listing.Listing
	seen := make(map[int64]int)
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line, _ := r.FieldPos(0)
		l, err := decodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if prev, dup := seen[l.ID]; dup {
			return nil, fmt.Errorf("line %d: id %d already on line %d", line, l.ID, prev)
		}
		seen[l.ID] = line
		out = append(out, l)
	}
	return out, nil
}

func decodeRow(row []string) (listing.Listing, error) {
	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return listing.Listing{}, fmt.Errorf("parse id %q: %w", row[0], err)
	}
	posted, err := listing.ParseTimestamp(row[2])
	if err != nil {
		return listing.Listing{}, err
	}
	typ, err := listing.ParseType(row[3])
	if err != nil {
		return listing.Listing{}, err
	}
	status, err := listing.ParseStatus(row[5])
	if err != nil {
		return listing.Listing{}, err
	}
	l, err := listing.New(id, row[1], posted, typ, row[4])
	if err != nil {
		return listing.Listing{}, err
	}
	return l.WithStatus(status), nil
}
