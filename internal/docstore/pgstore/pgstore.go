// Package pgstore keeps documents in Postgres through gorm. The body is a
// jsonb column; updates lock the row for the length of the transaction.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/tourney/internal/docstore"
)

type tournamentRow struct {
	ID        string    `gorm:"primaryKey"`
	Status    string    `gorm:"index:idx_tournaments_status_created,priority:1;not null;default:''"`
	CreatedAt time.Time `gorm:"index:idx_tournaments_status_created,priority:2,sort:desc;not null"`
	Revision  int64     `gorm:"not null;default:1"`
	Data      string    `gorm:"type:jsonb;not null"`
}

func (tournamentRow) TableName() string { return "tournaments" }

func (r tournamentRow) document() (docstore.Document, error) {
	data, err := docstore.Decode(r.Data)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("decoding document %s: %w", r.ID, err)
	}
	return docstore.Document{ID: r.ID, CreatedAt: r.CreatedAt.UTC(), Revision: r.Revision, Data: data}, nil
}

type Store struct {
	db   *gorm.DB
	feed docstore.Notifier
}

type Option func(*Store)

func WithNotifier(n docstore.Notifier) Option { return func(s *Store) { s.feed = n } }

// Open connects to dsn and migrates the tournaments table.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	s, err := New(ctx, db, opts...)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	return s, nil
}

func New(ctx context.Context, db *gorm.DB, opts ...Option) (*Store, error) {
	if err := db.WithContext(ctx).AutoMigrate(&tournamentRow{}); err != nil {
		return nil, fmt.Errorf("migrating tournaments: %w", err)
	}
	s := &Store{db: db, feed: docstore.NewFeed()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Create(ctx context.Context, data map[string]any) (docstore.Document, error) {
	body, err := docstore.CloneData(data)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("encoding document: %w", err)
	}
	id := uuid.NewString()
	body[docstore.IDField] = id
	raw, err := docstore.Encode(body)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("encoding document: %w", err)
	}

	row := tournamentRow{
		ID:        id,
		Status:    docstore.Document{Data: body}.Status(),
		CreatedAt: time.Now().UTC(),
		Revision:  1,
		Data:      raw,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return docstore.Document{}, fmt.Errorf("inserting document: %w", err)
	}

	if err := s.feed.Notify(ctx, id); err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{ID: id, CreatedAt: row.CreatedAt, Revision: 1, Data: body}, nil
}

func (s *Store) Get(ctx context.Context, id string) (docstore.Document, error) {
	var row tournamentRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return docstore.Document{}, fmt.Errorf("%w: %s", docstore.ErrNotFound, id)
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("reading document %s: %w", id, err)
	}
	return row.document()
}

func (s *Store) Update(ctx context.Context, id string, fn docstore.UpdateFunc) (docstore.Document, error) {
	var (
		result  docstore.Document
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row tournamentRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", docstore.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("locking document %s: %w", id, err)
		}

		cur, err := row.document()
		if err != nil {
			return err
		}
		updates, err := fn(cur)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			result = cur
			return nil
		}

		next := cur
		next.Data = docstore.Copy(cur.Data)
		if err := docstore.ApplyUpdates(next.Data, updates); err != nil {
			return err
		}
		next.Revision++
		raw, err := docstore.Encode(next.Data)
		if err != nil {
			return fmt.Errorf("encoding document: %w", err)
		}

		err = tx.Model(&tournamentRow{}).Where("id = ?", id).Updates(map[string]any{
			"status":   next.Status(),
			"revision": next.Revision,
			"data":     raw,
		}).Error
		if err != nil {
			return fmt.Errorf("updating document %s: %w", id, err)
		}
		result = next
		changed = true
		return nil
	})
	if err != nil {
		return docstore.Document{}, err
	}

	if changed {
		if err := s.feed.Notify(ctx, id); err != nil {
			return docstore.Document{}, err
		}
	}
	return result, nil
}

func (s *Store) ListByStatus(ctx context.Context, status string, limit int) ([]docstore.Document, error) {
	var rows []tournamentRow
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").Order("id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	docs := make([]docstore.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) Subscribe(ctx context.Context, id string) (*docstore.Subscription, error) {
	return docstore.Watch(ctx, s.Get, s.feed, id)
}

func (s *Store) Check(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
