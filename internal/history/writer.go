package history

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"go.uber.org/zap"

	apperrors "github.com/JakeFAU/roomwatch/internal/errors"
	"github.com/JakeFAU/roomwatch/internal/listing"
)

// Writer loads and saves the history through a listing.Store.
type Writer struct {
	store  listing.Store
	logger *zap.Logger
}

// NewWriter creates a Writer.
func NewWriter(store listing.Store, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, logger: logger}
}

// Load returns the persisted history. A store without history yields an
// empty slice; unreadable or corrupt history is a STORE error.
func (w *Writer) Load(ctx context.Context) ([]listing.Listing, error) {
	data, err := w.store.Read(ctx)
	if errors.Is(err, listing.ErrNotFound) {
		w.logger.Info("no prior history", zap.String("location", w.store.Location()))
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Store("read history", err)
	}
	prior, err := Decode(data)
	if err != nil {
		return nil, apperrors.Store("corrupt history at "+w.store.Location(), err)
	}
	w.logger.Debug("history loaded", zap.Int("records", len(prior)))
	return prior, nil
}

// SaveIfChanged writes reconciled only when its encoding differs byte-for-byte
// from the stored content. It reports whether a write happened.
func (w *Writer) SaveIfChanged(ctx context.Context, reconciled []listing.Listing) (bool, error) {
	encoded, err := Encode(reconciled)
	if err != nil {
		return false, apperrors.Store("encode history", err)
	}

	current, err := w.store.Read(ctx)
	switch {
	case errors.Is(err, listing.ErrNotFound):
		current = nil
	case err != nil:
		return false, apperrors.Store("read history", err)
	case bytes.Equal(current, encoded):
		w.logger.Info("history identical, no overwrite", zap.String("location", w.store.Location()))
		return false, nil
	}

	if err := w.store.Write(ctx, encoded); err != nil {
		return false, apperrors.Store("write history", err)
	}
	w.logger.Info("history saved",
		zap.String("location", w.store.Location()),
		zap.Int("records", len(reconciled)),
		zap.String("sha256", digest(encoded)),
	)
	return true, nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
