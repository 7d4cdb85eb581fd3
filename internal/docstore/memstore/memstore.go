// Package memstore is an in-process docstore.Store, used for single-process
// play and as the reference backend in tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DoyleJ11/tourney/internal/docstore"
)

type Store struct {
	mu     sync.Mutex
	docs   map[string]docstore.Document
	feed   docstore.Notifier
	now    func() time.Time
	closed bool
}

type Option func(*Store)

// WithNotifier replaces the in-process feed, e.g. with redisfeed.
func WithNotifier(n docstore.Notifier) Option { return func(s *Store) { s.feed = n } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func New(opts ...Option) *Store {
	s := &Store{
		docs: make(map[string]docstore.Document),
		feed: docstore.NewFeed(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Create(ctx context.Context, data map[string]any) (docstore.Document, error) {
	body, err := docstore.CloneData(data)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("encoding document: %w", err)
	}
	id := uuid.NewString()
	body[docstore.IDField] = id

	doc := docstore.Document{ID: id, CreatedAt: s.now().UTC(), Revision: 1, Data: body}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return docstore.Document{}, docstore.ErrClosed
	}
	s.docs[id] = doc
	s.mu.Unlock()

	if err := s.feed.Notify(ctx, id); err != nil {
		return docstore.Document{}, err
	}
	return copyDoc(doc), nil
}

func (s *Store) Get(_ context.Context, id string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.Document{}, docstore.ErrClosed
	}
	doc, ok := s.docs[id]
	if !ok {
		return docstore.Document{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, id)
	}
	return copyDoc(doc), nil
}

func (s *Store) Update(ctx context.Context, id string, fn docstore.UpdateFunc) (docstore.Document, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return docstore.Document{}, docstore.ErrClosed
	}
	cur, ok := s.docs[id]
	if !ok {
		s.mu.Unlock()
		return docstore.Document{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, id)
	}

	updates, err := fn(copyDoc(cur))
	if err != nil || len(updates) == 0 {
		s.mu.Unlock()
		return copyDoc(cur), err
	}

	next := copyDoc(cur)
	if err := docstore.ApplyUpdates(next.Data, updates); err != nil {
		s.mu.Unlock()
		return docstore.Document{}, err
	}
	next.Revision++
	s.docs[id] = next
	s.mu.Unlock()

	if err := s.feed.Notify(ctx, id); err != nil {
		return docstore.Document{}, err
	}
	return copyDoc(next), nil
}

func (s *Store) ListByStatus(_ context.Context, status string, limit int) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}

	var out []docstore.Document
	for _, doc := range s.docs {
		if doc.Status() == status {
			out = append(out, copyDoc(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, id string) (*docstore.Subscription, error) {
	return docstore.Watch(ctx, s.Get, s.feed, id)
}

func (s *Store) Check(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// copyDoc hands out documents that share nothing with the stored ones.
func copyDoc(d docstore.Document) docstore.Document {
	d.Data = docstore.Copy(d.Data)
	return d
}
