package listing

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store that holds no history yet.
var ErrNotFound = errors.New("history not found")

// Source retrieves the raw board markup.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Extractor turns board markup into listings. Malformed records are skipped,
// not reported as errors.
type Extractor interface {
	Parse(raw []byte) ([]Listing, error)
}

// Store holds the serialized history as a single object.
type Store interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Location() string
}

// Notifier delivers one alert.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// Ledger remembers which listing ids were already alerted on.
type Ledger interface {
	Seen(ctx context.Context, id int64) (bool, error)
	Mark(ctx context.Context, id int64, at time.Time) error
}

// Clock supplies the current instant. Now returns it in UTC.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
