// Package docstore is a small replicated document store: JSON documents
// addressed by id, changed by field path inside a per-document transaction,
// and observed through change subscriptions.
//
// Backends live in the sub-packages memstore, sqlstore and pgstore. Change
// signals travel through a Notifier, either the in-process Feed or
// redisfeed across processes.
package docstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("document not found")
var ErrClosed = errors.New("store closed")

// IDField is where Create records the assigned id inside the document.
const IDField = "id"

// StatusField is the top-level field ListByStatus filters on.
const StatusField = "status"

type Document struct {
	ID        string
	CreatedAt time.Time
	// Revision grows by one with every accepted update.
	Revision int64
	Data     map[string]any
}

// Status returns the document's top-level status field, if it is a string.
func (d Document) Status() string {
	s, _ := d.Data[StatusField].(string)
	return s
}

// UpdateFunc receives the current document inside the store's transaction
// and returns the field writes to apply. Returning no updates is a no-op that
// notifies nobody. It must not call back into the store.
type UpdateFunc func(cur Document) ([]FieldUpdate, error)

type Store interface {
	// Create stores data under a fresh id and returns the stored document.
	Create(ctx context.Context, data map[string]any) (Document, error)
	Get(ctx context.Context, id string) (Document, error)
	Update(ctx context.Context, id string, fn UpdateFunc) (Document, error)
	// ListByStatus returns up to limit documents whose status field equals
	// status, newest first.
	ListByStatus(ctx context.Context, status string, limit int) ([]Document, error)
	// Subscribe delivers the current document and then the merged document
	// after every write until ctx ends.
	Subscribe(ctx context.Context, id string) (*Subscription, error)
	Close() error
}

// Notifier carries "document id changed" signals. Signals carry no payload;
// listeners re-read the document.
type Notifier interface {
	Notify(ctx context.Context, id string) error
	// Listen returns a channel that receives at least one value after each
	// Notify for id. It is closed once ctx ends.
	Listen(ctx context.Context, id string) (<-chan struct{}, error)
}

// Checker is implemented by backends that can report their health.
type Checker interface {
	Check(ctx context.Context) error
}
