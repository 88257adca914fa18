// Package consumer applies document lifecycle events from Kafka to the
// object store. Indexing follows from the store's hooks.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/internal/objectstore"
	apperrors "github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/fulltext-search/pkg/resilience"
)

// Operations carried by DocumentEvent.Op.
const (
	OpPut    = "put"
	OpDelete = "delete"
)

// DocumentEvent is the JSON value of a message on the documents topic. Put
// carries the full record; delete only needs the id.
type DocumentEvent struct {
	Op         string           `json:"op"`
	Collection string           `json:"collection"`
	ID         string           `json:"id,omitempty"`
	Record     *document.Record `json:"record,omitempty"`
}

// Validate rejects events that can never be applied.
func (ev DocumentEvent) Validate() error {
	if ev.Collection == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "collection is required")
	}
	switch ev.Op {
	case OpPut:
		if ev.Record == nil {
			return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "put event without record")
		}
		if err := ev.Record.Validate(); err != nil {
			return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "record: %v", err)
		}
	case OpDelete:
		if ev.objectID() == "" {
			return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "delete event without id")
		}
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown op %q", ev.Op)
	}
	return nil
}

func (ev DocumentEvent) objectID() string {
	if ev.ID != "" {
		return ev.ID
	}
	if ev.Record != nil {
		return ev.Record.ID
	}
	return ""
}

// Apply performs ev against objects. Deleting an object that does not
// exist succeeds.
func Apply(ctx context.Context, objects *objectstore.Store, ev DocumentEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	switch ev.Op {
	case OpPut:
		return objects.Put(ctx, ev.Collection, ev.Record)
	default:
		err := objects.Delete(ctx, ev.Collection, ev.objectID())
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			return nil
		}
		return err
	}
}

// HandleMessage returns a kafka.MessageHandler applying each event to
// objects. Malformed events are logged and reported as permanent so the
// consumer does not retry them.
func HandleMessage(objects *objectstore.Store) kafka.MessageHandler {
	logger := slog.Default().With("component", "document-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[DocumentEvent](value)
		if err != nil {
			err = apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%v", err)
		} else {
			err = ev.Validate()
		}
		if err != nil {
			logger.Error("rejecting document event", "key", string(key), "error", err)
			return resilience.Permanent(err)
		}
		if err := Apply(ctx, objects, ev); err != nil {
			return fmt.Errorf("applying %s %s/%s: %w", ev.Op, ev.Collection, ev.objectID(), err)
		}
		logger.Debug("document event applied",
			"op", ev.Op,
			"collection", ev.Collection,
			"object_id", ev.objectID(),
		)
		return nil
	}
}
