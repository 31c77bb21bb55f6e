// Package messages persists chat messages and serves recent history.
package messages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errInvalidLimit    = errors.New("limit must be positive")
	noOpLogger         = zap.NewNop()
)

// StoreError carries an operation.reason code alongside the underlying cause.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

func (e *StoreError) Code() string {
	return e.code
}

const (
	opStoreNew    = "messages.store.new"
	opInsert      = "messages.insert"
	opQueryRecent = "messages.query_recent"
)

func newStoreError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &StoreError{code: code, err: cause}
}

type StoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Store appends messages and reads back the most recent ones.
type Store struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newStoreError(opStoreNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Store{
		db:     cfg.Database,
		clock:  clock,
		logger: logger,
	}, nil
}

// Insert appends a message and returns the stored record with its assigned id.
func (s *Store) Insert(ctx context.Context, author, rawText string) (Record, error) {
	record := Record{
		Author:    author,
		RawText:   rawText,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logError(opInsert, "create_failed", err, zap.String("author", author))
		return Record{}, newStoreError(opInsert, "create_failed", err)
	}
	return record, nil
}

// QueryRecent returns up to limit records, newest first.
func (s *Store) QueryRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, newStoreError(opQueryRecent, "invalid_limit", errInvalidLimit)
	}

	var records []Record
	if err := s.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		s.logError(opQueryRecent, "query_failed", err, zap.Int("limit", limit))
		return nil, newStoreError(opQueryRecent, "query_failed", err)
	}
	return records, nil
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("message store error", attrs...)
}
