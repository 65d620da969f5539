// Package listing defines the listing record and the collaborators the
// reconciliation pipeline is built from.
package listing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type is the kind of posting on the board.
type Type string

// Listing types as they appear in the persisted history.
const (
	TenantWanted Type = "Tenant"
	SubletWanted Type = "Sublet"
)

// ParseType accepts the board wording ("tenant", "Sublet") as well as the
// enum names TENANT_WANTED and SUBLET_WANTED.
func ParseType(raw string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "tenant", "tenant_wanted":
		return TenantWanted, nil
	case "sublet", "sublet_wanted":
		return SubletWanted, nil
	default:
		return "", fmt.Errorf("unknown listing type %q", raw)
	}
}

// Label renders the type as shown to humans, e.g. "Tenant wanted".
func (t Type) Label() string {
	return string(t) + " wanted"
}

// Status reflects presence in the latest snapshot.
type Status string

// Status values persisted in the history.
const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// ParseStatus is strict: only the exact persisted spellings are accepted.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusActive, StatusInactive:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("unknown listing status %q", raw)
	}
}

// TimestampLayout is the persisted posted_at form (UTC with explicit offset).
const TimestampLayout = "2006-01-02T15:04:05-07:00"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp reads an RFC 3339 timestamp and normalizes it to UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t.UTC(), nil
}

// ErrInvalid is wrapped by every construction failure.
var ErrInvalid = errors.New("invalid listing")

// Listing is one posting. ID is the natural key for its whole lifetime.
type Listing struct {
	ID       int64
	Title    string
	PostedAt time.Time
	Type     Type
	Link     string
	Status   Status
}

// New validates the fields and returns an ACTIVE listing with PostedAt in UTC.
func New(id int64, title string, postedAt time.Time, typ Type, link string) (Listing, error) {
	if id <= 0 {
		return Listing{}, fmt.Errorf("%w: id must be > 0, got %d", ErrInvalid, id)
	}
	if postedAt.IsZero() {
		return Listing{}, fmt.Errorf("%w: id %d has no posted_at", ErrInvalid, id)
	}
	if typ != TenantWanted && typ != SubletWanted {
		return Listing{}, fmt.Errorf("%w: id %d has unknown type %q", ErrInvalid, id, typ)
	}
	if strings.TrimSpace(link) == "" {
		return Listing{}, fmt.Errorf("%w: id %d has no link", ErrInvalid, id)
	}
	return Listing{
		ID:       id,
		Title:    title,
		PostedAt: postedAt.UTC(),
		Type:     typ,
		Link:     link,
		Status:   StatusActive,
	}, nil
}

// WithStatus returns a copy of l carrying status s.
func (l Listing) WithStatus(s Status) Listing {
	l.Status = s
	return l
}

// Alert is a single notification about a fresh listing.
type Alert struct {
	RunID   string
	Listing Listing
	Text    string
}
