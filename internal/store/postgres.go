package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

// siteRecord is the relational row of a record. Every collection shares
// the site_records table, keyed by (collection, id).
type siteRecord struct {
	Collection string       `gorm:"primaryKey;size:32"`
	ID         string       `gorm:"primaryKey;size:64"`
	Fields     model.Fields `gorm:"serializer:json;type:jsonb;not null"`
	CreatedAt  time.Time    `gorm:"index"`
	UpdatedAt  time.Time
}

// TableName sets the table used by gorm.
func (siteRecord) TableName() string {
	return "site_records"
}

func (r siteRecord) record() model.Record {
	return model.Record{
		ID:        r.ID,
		Fields:    r.Fields.Clone(),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// PostgresStore implements Store on PostgreSQL through gorm.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to dsn and migrates the records table.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres store: DSN must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: connect: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates or extends the records table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&siteRecord{}); err != nil {
		return fmt.Errorf("postgres store: migrate: %w", err)
	}
	return nil
}

// List returns all records of a collection.
func (s *PostgresStore) List(ctx context.Context, c model.Collection) ([]model.Record, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}

	var rows []siteRecord
	err := s.db.WithContext(ctx).
		Where("collection = ?", string(c)).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}

	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

// Get retrieves a record by its ID.
func (s *PostgresStore) Get(ctx context.Context, c model.Collection, id string) (*model.Record, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	var row siteRecord
	err := s.db.WithContext(ctx).
		First(&row, "collection = ? AND id = ?", string(c), id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c, id, err)
	}

	rec := row.record()
	return &rec, nil
}

// Create inserts a new row.
func (s *PostgresStore) Create(ctx context.Context, c model.Collection, fields model.Fields) (*model.Record, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}

	rec := newRecord(fields)
	row := siteRecord{
		Collection: string(c),
		ID:         rec.ID,
		Fields:     rec.Fields,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
	err := s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrDuplicateID
	}
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", c, err)
	}
	return &rec, nil
}

// Update merges patch into the row under a row lock.
func (s *PostgresStore) Update(
	ctx context.Context,
	c model.Collection,
	id string,
	patch model.Fields,
) (*model.Record, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	var updated model.Record
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row siteRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "collection = ? AND id = ?", string(c), id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		updated = applyPatch(row.record(), patch)
		row.Fields = updated.Fields
		row.UpdatedAt = updated.UpdatedAt
		return tx.Save(&row).Error
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", c, id, err)
	}
	return &updated, nil
}

// Delete removes a row.
func (s *PostgresStore) Delete(ctx context.Context, c model.Collection, id string) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}

	result := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", string(c), id).
		Delete(&siteRecord{})
	if result.Error != nil {
		return fmt.Errorf("delete %s/%s: %w", c, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
