package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://WOKO.ch/en/zimmer-in-zuerich", "woko.ch"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if fetchesTotal == nil || alertsTotal == nil || storeWritesTotal == nil || runDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveHelpers(t *testing.T) {
	Init()

	before := testutil.ToFloat64(fetchesTotal.WithLabelValues("woko.ch", "ok"))
	ObserveFetch("https://woko.ch/en/zimmer-in-zuerich", "ok", 512)
	if got := testutil.ToFloat64(fetchesTotal.WithLabelValues("woko.ch", "ok")); got != before+1 {
		t.Errorf("fetches_total = %f; want %f", got, before+1)
	}

	ObserveSnapshot(12, 2, 1)
	if got := testutil.ToFloat64(listingsScraped); got != 12 {
		t.Errorf("listings_scraped = %f; want 12", got)
	}
	if got := testutil.ToFloat64(listingsFresh); got != 2 {
		t.Errorf("listings_fresh = %f; want 2", got)
	}

	sentBefore := testutil.ToFloat64(alertsTotal.WithLabelValues(AlertSent))
	ObserveAlerts(AlertSent, 3)
	ObserveAlerts(AlertSent, 0)
	if got := testutil.ToFloat64(alertsTotal.WithLabelValues(AlertSent)); got != sentBefore+3 {
		t.Errorf("alerts_total{sent} = %f; want %f", got, sentBefore+3)
	}

	finished := time.Unix(1_700_000_000, 0)
	ObserveRun(2*time.Second, true, finished)
	if got := testutil.ToFloat64(lastSuccessfulRunTS); got != float64(finished.Unix()) {
		t.Errorf("last_success_timestamp = %f; want %d", got, finished.Unix())
	}
}

func TestPushSendsToGateway(t *testing.T) {
	Init()
	ObserveStoreWrite(WriteChanged)

	var hits atomic.Int32
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := Push(context.Background(), srv.URL, ""); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one push, got %d", hits.Load())
	}
	if p, _ := path.Load().(string); !strings.Contains(p, "/job/roomwatch") {
		t.Errorf("unexpected push path %q", p)
	}
}

func TestPushWithoutGatewayIsNoop(t *testing.T) {
	if err := Push(context.Background(), "", "job"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
}

func TestPushGatewayError(t *testing.T) {
	Init()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := Push(context.Background(), srv.URL, "roomwatch"); err == nil {
		t.Fatal("expected error from failing gateway")
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://woko.ch", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned empty string", orig)
		}
	})
}
