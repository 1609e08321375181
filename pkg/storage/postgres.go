package storage

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresStore persists responses in PostgreSQL via gorm.
type PostgresStore struct {
	db *gorm.DB
}

var _ ResponseStore = (*PostgresStore)(nil)

// NewPostgresStore opens the database and migrates the responses table.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn cannot be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Response{}); err != nil {
		return nil, fmt.Errorf("failed to migrate responses table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Save(ctx context.Context, response *Response) error {
	if response == nil {
		return fmt.Errorf("response cannot be nil")
	}
	if err := s.db.WithContext(ctx).Create(response).Error; err != nil {
		return fmt.Errorf("failed to save response: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]Response, error) {
	var responses []Response
	if err := s.db.WithContext(ctx).Find(&responses).Error; err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	return responses, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Response{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count responses: %w", err)
	}
	return count, nil
}
