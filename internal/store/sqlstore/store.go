// Package sqlstore keeps transactions in a SQL database through gorm.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cleared-dev/dedupe/internal/id"
	"github.com/cleared-dev/dedupe/internal/model"
	"github.com/cleared-dev/dedupe/internal/store"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// transactionRecord is the table row for a transaction.
type transactionRecord struct {
	ID                  string          `gorm:"type:varchar(36);primaryKey"`
	BusinessName        string          `gorm:"index;not null"`
	BillingAmount       decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Date                time.Time       `gorm:"index;not null"`
	IsReviewedDuplicate bool            `gorm:"index;not null;default:false"`
	Reference           string
	Source              string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (transactionRecord) TableName() string {
	return "transactions"
}

func toRecord(tx model.Transaction) transactionRecord {
	return transactionRecord{
		ID:                  tx.ID,
		BusinessName:        tx.BusinessName,
		BillingAmount:       tx.BillingAmount,
		Date:                tx.Date.UTC(),
		IsReviewedDuplicate: tx.IsReviewedDuplicate,
		Reference:           tx.Reference,
		Source:              tx.Source,
	}
}

func (r transactionRecord) toModel() model.Transaction {
	return model.Transaction{
		ID:                  r.ID,
		BusinessName:        r.BusinessName,
		BillingAmount:       r.BillingAmount,
		Date:                r.Date.UTC(),
		IsReviewedDuplicate: r.IsReviewedDuplicate,
		Reference:           r.Reference,
		Source:              r.Source,
	}
}

// Store is a store.Store backed by gorm.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// Open connects with the given driver and migrates the schema. dsn is a
// file path for sqlite and a connection string for postgres. A nil logger
// silences gorm.
func Open(driver, dsn string, log *logrus.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(log)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&transactionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// List returns transactions ordered and limited per opts.
func (s *Store) List(ctx context.Context, opts store.ListOptions) ([]model.Transaction, error) {
	order := "date DESC"
	if opts.Sort == store.SortDateAsc {
		order = "date ASC"
	}

	var records []transactionRecord
	err := s.db.WithContext(ctx).
		Order(order).
		Order("created_at ASC").
		Limit(opts.EffectiveLimit()).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	txs := make([]model.Transaction, len(records))
	for i, r := range records {
		txs[i] = r.toModel()
	}
	return txs, nil
}

// Create validates tx, assigns an ID and inserts it.
func (s *Store) Create(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	tx.ID = id.New()
	if err := store.AsError(store.ValidateTransaction(tx)); err != nil {
		return model.Transaction{}, err
	}

	rec := toRecord(tx)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return model.Transaction{}, fmt.Errorf("failed to save transaction: %w", err)
	}
	return rec.toModel(), nil
}

// Update merges patch into the stored row.
func (s *Store) Update(ctx context.Context, txID string, patch model.Patch) (model.Transaction, error) {
	db := s.db.WithContext(ctx)

	var rec transactionRecord
	if err := db.First(&rec, "id = ?", txID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Transaction{}, fmt.Errorf("updating %s: %w", txID, store.ErrNotFound)
		}
		return model.Transaction{}, fmt.Errorf("loading %s: %w", txID, err)
	}

	if patch.IsEmpty() {
		return rec.toModel(), nil
	}

	updates := map[string]interface{}{}
	if patch.IsReviewedDuplicate != nil {
		updates["is_reviewed_duplicate"] = *patch.IsReviewedDuplicate
	}
	if err := db.Model(&rec).Updates(updates).Error; err != nil {
		return model.Transaction{}, fmt.Errorf("updating %s: %w", txID, err)
	}
	return patch.Apply(rec.toModel()), nil
}

// Delete permanently removes the row.
func (s *Store) Delete(ctx context.Context, txID string) error {
	result := s.db.WithContext(ctx).Delete(&transactionRecord{}, "id = ?", txID)
	if result.Error != nil {
		return fmt.Errorf("deleting %s: %w", txID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("deleting %s: %w", txID, store.ErrNotFound)
	}
	return nil
}

// newGormLogger routes gorm warnings and errors through logrus.
func newGormLogger(log *logrus.Logger) gormlogger.Interface {
	if log == nil {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	level := gormlogger.Warn
	if log.IsLevelEnabled(logrus.DebugLevel) {
		level = gormlogger.Info
	}
	return gormlogger.New(log, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}
