// Package pubsub publishes alerts to a Google Cloud Pub/Sub topic so other
// services can fan them out.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"

	apperrors "github.com/JakeFAU/roomwatch/internal/errors"
	"github.com/JakeFAU/roomwatch/internal/listing"
)

// Config names the destination topic.
type Config struct {
	ProjectID string
	TopicID   string
}

// Configured reports whether both project and topic are present.
func (c Config) Configured() bool {
	return c.ProjectID != "" && c.TopicID != ""
}

type message struct {
	RunID       string `json:"run_id,omitempty"`
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	PostedAt    string `json:"posted_at"`
	ListingType string `json:"listing_type"`
	Link        string `json:"link"`
	Text        string `json:"text"`
}

// Notifier wraps a Pub/Sub topic.
type Notifier struct {
	topic *pubsub.Topic
}

// New creates a Notifier for the provided topic.
func New(topic *pubsub.Topic) (*Notifier, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub topic is required")
	}
	return &Notifier{topic: topic}, nil
}

// Send marshals the alert to JSON and waits for the publish to be acknowledged.
func (n *Notifier) Send(ctx context.Context, alert listing.Alert) error {
	data, err := json.Marshal(message{
		RunID:       alert.RunID,
		ID:          alert.Listing.ID,
		Title:       alert.Listing.Title,
		PostedAt:    listing.FormatTimestamp(alert.Listing.PostedAt),
		ListingType: string(alert.Listing.Type),
		Link:        alert.Listing.Link,
		Text:        alert.Text,
	})
	if err != nil {
		return apperrors.Notify("marshal alert", err)
	}

	result := n.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"listing_id":   strconv.FormatInt(alert.Listing.ID, 10),
			"listing_type": string(alert.Listing.Type),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return apperrors.Notify("publish alert", err)
	}
	return nil
}

// Close flushes pending publishes.
func (n *Notifier) Close() {
	n.topic.Stop()
}
