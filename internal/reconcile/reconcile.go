// Package reconcile merges a freshly scraped snapshot into the persisted
// listing history.
package reconcile

import (
	"slices"

	"github.com/JakeFAU/roomwatch/internal/listing"
)

// Reconcile returns the new history: every listing of the snapshot as ACTIVE
// with its fresh fields, followed by prior listings missing from the snapshot
// marked INACTIVE, stable-sorted newest first by PostedAt.
//
// Duplicate ids inside the snapshot keep their first occurrence. Neither
// input slice is modified.
func Reconcile(snapshot, prior []listing.Listing) []listing.Listing {
	seen := make(map[int64]struct{}, len(snapshot))
	out := make([]listing.Listing, 0, len(snapshot)+len(prior))
	for _, l := range snapshot {
		if _, dup := seen[l.ID]; dup {
			continue
		}
		seen[l.ID] = struct{}{}
		out = append(out, l.WithStatus(listing.StatusActive))
	}
	for _, l := range prior {
		if _, present := seen[l.ID]; present {
			continue
		}
		// prior is unique per id when read from a valid store; guard anyway
		seen[l.ID] = struct{}{}
		out = append(out, l.WithStatus(listing.StatusInactive))
	}
	slices.SortStableFunc(out, func(a, b listing.Listing) int {
		return b.PostedAt.Compare(a.PostedAt)
	})
	return out
}

// Summary counts what a reconciliation changed.
type Summary struct {
	New         int
	Reappeared  int
	StillActive int
	Vanished    int
	Total       int
}

// Summarize compares the prior history with its reconciled successor.
func Summarize(prior, reconciled []listing.Listing) Summary {
	before := make(map[int64]listing.Status, len(prior))
	for _, l := range prior {
		before[l.ID] = l.Status
	}
	var s Summary
	s.Total = len(reconciled)
	for _, l := range reconciled {
		old, known := before[l.ID]
		switch {
		case l.Status == listing.StatusInactive && old == listing.StatusActive:
			s.Vanished++
		case l.Status == listing.StatusActive && !known:
			s.New++
		case l.Status == listing.StatusActive && old == listing.StatusInactive:
			s.Reappeared++
		case l.Status == listing.StatusActive:
			s.StillActive++
		}
	}
	return s
}
