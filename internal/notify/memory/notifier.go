// Package memory contains an in-memory notifier for tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/roomwatch/internal/listing"
)

// Notifier records delivered alerts. Fail, when set, decides per alert
// whether delivery fails.
type Notifier struct {
	mu     sync.RWMutex
	alerts []listing.Alert
	tries  int
	Fail   func(listing.Alert) error
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Send records the alert unless Fail rejects it.
func (n *Notifier) Send(_ context.Context, alert listing.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tries++
	if n.Fail != nil {
		if err := n.Fail(alert); err != nil {
			return err
		}
	}
	n.alerts = append(n.alerts, alert)
	return nil
}

// Alerts returns the delivered alerts.
func (n *Notifier) Alerts() []listing.Alert {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]listing.Alert, len(n.alerts))
	copy(out, n.alerts)
	return out
}

// Attempts returns how many times Send was called.
func (n *Notifier) Attempts() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tries
}
