// Package freshness picks the listings of a snapshot that are young enough
// to alert on.
package freshness

import (
	"slices"
	"time"

	"github.com/JakeFAU/roomwatch/internal/listing"
)

// Options controls the selection.
type Options struct {
	// Window is how far back from now a listing still counts as fresh.
	Window time.Duration
	// Types restricts the selection; empty means every type.
	Types []listing.Type
}

// Allows reports whether typ passes the type restriction.
func (o Options) Allows(typ listing.Type) bool {
	return len(o.Types) == 0 || slices.Contains(o.Types, typ)
}

// SelectFresh returns, in input order, the snapshot listings posted at or
// after now-Window that pass the type restriction. A negative window is
// treated as zero.
func SelectFresh(snapshot []listing.Listing, opts Options, now time.Time) []listing.Listing {
	window := opts.Window
	if window < 0 {
		window = 0
	}
	cutoff := now.UTC().Add(-window)

	var fresh []listing.Listing
	for _, l := range snapshot {
		if l.PostedAt.Before(cutoff) {
			continue
		}
		if !opts.Allows(l.Type) {
			continue
		}
		fresh = append(fresh, l)
	}
	return fresh
}
