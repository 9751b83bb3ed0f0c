package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"propertylens/server/internal/models"
)

const defaultRecentLimit = 20

// Store persists settled searches in SQLite.
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewStore opens the history database, creating the file and its directory
// if needed, and migrates the schema.
func NewStore(path string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	// gorm's own logger is silenced; logrus is the single log stream.
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.AutoMigrate(&models.SearchRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	logger.WithField("path", path).Info("History database ready")
	return &Store{db: db, logger: logger}, nil
}

// Record saves one settled search.
func (s *Store) Record(record *models.SearchRecord) error {
	if err := s.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to save search record: %w", err)
	}
	return nil
}

// Recent returns the most recent searches, newest first.
func (s *Store) Recent(limit int) ([]models.SearchRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	var records []models.SearchRecord
	if err := s.db.Order("searched_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load search history: %w", err)
	}
	return records, nil
}

// Prune deletes records older than the cutoff and reports how many went.
func (s *Store) Prune(olderThan time.Time) (int64, error) {
	result := s.db.Where("searched_at < ?", olderThan).Delete(&models.SearchRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune search history: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
