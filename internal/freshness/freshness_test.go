package freshness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/roomwatch/internal/listing"
)

func build(t *testing.T, id int64, posted time.Time, typ listing.Type) listing.Listing {
	t.Helper()
	l, err := listing.New(id, "room", posted, typ, "https://woko.ch/en/zimmer-in-zuerich-details/1")
	require.NoError(t, err)
	return l
}

func TestSelectFreshBoundaryIsInclusive(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 2, 10, 0, 30, 0, time.UTC)
	window := 5 * time.Minute
	edge := build(t, 1, now.Add(-window), listing.TenantWanted)
	justBefore := build(t, 2, now.Add(-window-time.Second), listing.TenantWanted)

	got := SelectFresh([]listing.Listing{edge, justBefore}, Options{Window: window}, now)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
}

func TestSelectFreshConvertsNowToUTC(t *testing.T) {
	t.Parallel()

	zurich := time.FixedZone("CET", 3600)
	nowLocal := time.Date(2024, 1, 2, 11, 0, 0, 0, zurich)
	l := build(t, 1, time.Date(2024, 1, 2, 9, 58, 0, 0, time.UTC), listing.TenantWanted)

	got := SelectFresh([]listing.Listing{l}, Options{Window: 5 * time.Minute}, nowLocal)
	assert.Len(t, got, 1)
}

func TestSelectFreshTypeRestriction(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	tenant := build(t, 1, now, listing.TenantWanted)
	sublet := build(t, 2, now, listing.SubletWanted)
	snapshot := []listing.Listing{sublet, tenant}

	all := SelectFresh(snapshot, Options{Window: time.Minute}, now)
	assert.Len(t, all, 2)
	assert.Equal(t, int64(2), all[0].ID, "input order is preserved")

	tenantsOnly := SelectFresh(snapshot, Options{Window: time.Minute, Types: []listing.Type{listing.TenantWanted}}, now)
	require.Len(t, tenantsOnly, 1)
	assert.Equal(t, int64(1), tenantsOnly[0].ID)
}

func TestSelectFreshZeroAndNegativeWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	atNow := build(t, 1, now, listing.TenantWanted)
	older := build(t, 2, now.Add(-time.Second), listing.TenantWanted)

	for _, w := range []time.Duration{0, -time.Hour} {
		got := SelectFresh([]listing.Listing{atNow, older}, Options{Window: w}, now)
		require.Len(t, got, 1)
		assert.Equal(t, int64(1), got[0].ID)
	}
}

func TestSelectFreshEmptySnapshot(t *testing.T) {
	t.Parallel()

	assert.Empty(t, SelectFresh(nil, Options{Window: time.Hour}, time.Now()))
}
