package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
)

// Dataset is the single-row table backing SQLStore.
type Dataset struct {
	Name      string    `gorm:"primaryKey;type:varchar(64)"`
	Body      string    `gorm:"type:longtext;not null"`
	UpdatedAt time.Time
}

func (Dataset) TableName() string {
	return "datasets"
}

// SQLStore keeps the dataset as one JSON row in MySQL.
type SQLStore struct {
	db     *gorm.DB
	name   string
	logger *zap.Logger
}

func NewSQLStore(cfg *config.MySQLConfig, name string, logger *zap.Logger) (*SQLStore, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	return newSQLStore(db, name, logger)
}

func newSQLStore(db *gorm.DB, name string, logger *zap.Logger) (*SQLStore, error) {
	if err := db.AutoMigrate(&Dataset{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &SQLStore{db: db, name: name, logger: logger}, nil
}

func (s *SQLStore) Load(ctx context.Context) (*models.Document, error) {
	var row Dataset
	if err := s.db.WithContext(ctx).Where("name = ?", s.name).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewDocument(), nil
		}
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	var doc models.Document
	if err := json.Unmarshal([]byte(row.Body), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return doc.Normalize(), nil
}

func (s *SQLStore) Save(ctx context.Context, doc *models.Document) error {
	data, err := json.Marshal(doc.Clone().Normalize())
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}

	row := Dataset{Name: s.name, Body: string(data), UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		s.logger.Error("Failed to save dataset", zap.String("name", s.name), zap.Error(err))
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

func (s *SQLStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
