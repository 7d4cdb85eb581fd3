// Package sqlstore keeps documents in an embedded libSQL database. The body
// is a JSON text column; status and created_at are real columns so discovery
// is an index scan.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/DoyleJ11/tourney/internal/docstore"
)

type Store struct {
	db   *sql.DB
	feed docstore.Notifier
	now  func() time.Time
}

type Option func(*Store)

func WithNotifier(n docstore.Notifier) Option { return func(s *Store) { s.feed = n } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New wraps a database opened with database.Open and migrated with
// migrations.Run.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, feed: docstore.NewFeed(), now: time.Now}
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
	doc := docstore.Document{ID: uuid.NewString(), CreatedAt: s.now().UTC(), Revision: 1, Data: body}
	doc.Data[docstore.IDField] = doc.ID

	raw, err := docstore.Encode(doc.Data)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("encoding document: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tournaments (id, status, created_at, revision, data) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.Status(), doc.CreatedAt.UnixNano(), doc.Revision, raw,
	)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("inserting document: %w", err)
	}

	if err := s.feed.Notify(ctx, doc.ID); err != nil {
		return docstore.Document{}, err
	}
	return doc, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) Get(ctx context.Context, id string) (docstore.Document, error) {
	return get(ctx, s.db, id)
}

func get(ctx context.Context, q queryer, id string) (docstore.Document, error) {
	var (
		createdAt int64
		raw       string
		doc       = docstore.Document{ID: id}
	)
	err := q.QueryRowContext(ctx,
		`SELECT created_at, revision, data FROM tournaments WHERE id = ?`, id,
	).Scan(&createdAt, &doc.Revision, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, id)
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("reading document %s: %w", id, err)
	}
	doc.CreatedAt = time.Unix(0, createdAt).UTC()
	if doc.Data, err = docstore.Decode(raw); err != nil {
		return docstore.Document{}, fmt.Errorf("decoding document %s: %w", id, err)
	}
	return doc, nil
}

// Update is a read-modify-write inside one transaction.
func (s *Store) Update(ctx context.Context, id string, fn docstore.UpdateFunc) (docstore.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cur, err := get(ctx, tx, id)
	if err != nil {
		return docstore.Document{}, err
	}

	updates, err := fn(cur)
	if err != nil || len(updates) == 0 {
		return cur, err
	}

	next := cur
	next.Data = docstore.Copy(cur.Data)
	if err := docstore.ApplyUpdates(next.Data, updates); err != nil {
		return docstore.Document{}, err
	}
	next.Revision++

	raw, err := docstore.Encode(next.Data)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("encoding document: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE tournaments SET status = ?, revision = ?, data = ? WHERE id = ?`,
		next.Status(), next.Revision, raw, id,
	)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("updating document %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return docstore.Document{}, fmt.Errorf("committing document %s: %w", id, err)
	}

	if err := s.feed.Notify(ctx, id); err != nil {
		return docstore.Document{}, err
	}
	return next, nil
}

func (s *Store) ListByStatus(ctx context.Context, status string, limit int) ([]docstore.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, revision, data FROM tournaments
		 WHERE status = ? ORDER BY created_at DESC, id LIMIT ?`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var (
			doc       docstore.Document
			createdAt int64
			raw       string
		)
		if err := rows.Scan(&doc.ID, &createdAt, &doc.Revision, &raw); err != nil {
			return nil, err
		}
		doc.CreatedAt = time.Unix(0, createdAt).UTC()
		if doc.Data, err = docstore.Decode(raw); err != nil {
			return nil, fmt.Errorf("decoding document %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) Subscribe(ctx context.Context, id string) (*docstore.Subscription, error) {
	return docstore.Watch(ctx, s.Get, s.feed, id)
}

func (s *Store) Check(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }
