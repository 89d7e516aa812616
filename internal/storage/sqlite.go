package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"voicegate/internal/matcher"
	"voicegate/internal/model"
)

const DefaultDBFile = "voicegate.sqlite3"
const errDBClientNil = "db client is nil"

// DBClient is the SQLite-backed store for enrollment samples, voiceprints
// and the authentication audit trail.
type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Sample is one stored enrollment sample. The vector itself is an opaque
// msgpack blob; Ordinal preserves the order samples were recorded in.
type Sample struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	UserID    string `gorm:"index:idx_sample_user" json:"user_id"`
	Ordinal   int    `json:"ordinal"`
	Vector    []byte `json:"-"`
	CreatedAt time.Time
}

// VoiceprintRow is the single active voiceprint per user.
type VoiceprintRow struct {
	UserID      string `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	Blob        []byte `json:"-"`
	SampleCount int    `json:"sample_count"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuthAttempt is one audit record of an authentication decision.
type AuthAttempt struct {
	ID         string  `gorm:"primaryKey;type:varchar(36)"`
	UserID     string  `gorm:"index:idx_attempt_user" json:"user_id"`
	Similarity float64 `json:"similarity"`
	Threshold  float64 `json:"threshold"`
	Accepted   bool    `json:"accepted"`
	CreatedAt  time.Time
}

// NewDBClient opens the database at VOICEGATE_DB_PATH, falling back to the
// default file in the working directory.
func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("VOICEGATE_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !os.IsExist(err) {
		if filepath.Dir(dbPath) != "." {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Sample{}, &VoiceprintRow{}, &AuthAttempt{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveSample stores one enrollment sample and returns its ID and ordinal
// position (1-based) within the user's set.
func (c *DBClient) SaveSample(userID string, vec model.FeatureVector) (string, int, error) {
	if c == nil || c.DB == nil {
		return "", 0, errors.New(errDBClientNil)
	}

	blob, err := EncodeVector(vec)
	if err != nil {
		return "", 0, err
	}

	var id string
	var ordinal int
	err = c.DB.Transaction(func(tx *gorm.DB) error {
		var maxOrdinal sql.NullInt64
		row := tx.Model(&Sample{}).Where("user_id = ?", userID).Select("MAX(ordinal)").Row()
		if err := row.Scan(&maxOrdinal); err != nil {
			return fmt.Errorf("querying max ordinal: %w", err)
		}
		ordinal = int(maxOrdinal.Int64) + 1
		id = uuid.NewString()
		sample := Sample{ID: id, UserID: userID, Ordinal: ordinal, Vector: blob}
		if err := tx.Create(&sample).Error; err != nil {
			return fmt.Errorf("creating sample: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return id, ordinal, nil
}

// ListSamples returns a user's enrollment vectors ordered by ordinal.
func (c *DBClient) ListSamples(userID string) ([]model.FeatureVector, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Sample
	if err := c.DB.Where("user_id = ?", userID).Order("ordinal").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	out := make([]model.FeatureVector, 0, len(rows))
	for _, r := range rows {
		vec, err := DecodeVector(r.Vector)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

// CountSamples returns the number of samples stored for a user.
func (c *DBClient) CountSamples(userID string) (int, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.Model(&Sample{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting samples: %w", err)
	}
	return int(count), nil
}

// SaveVoiceprint stores or replaces the user's voiceprint.
func (c *DBClient) SaveVoiceprint(userID string, vp matcher.Voiceprint) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	blob, err := EncodeVoiceprint(vp)
	if err != nil {
		return err
	}
	row := VoiceprintRow{UserID: userID, Blob: blob, SampleCount: vp.SampleCount}
	err = c.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving voiceprint: %w", err)
	}
	return nil
}

// LoadVoiceprint returns the user's voiceprint, with found=false when none
// has been stored.
func (c *DBClient) LoadVoiceprint(userID string) (matcher.Voiceprint, bool, error) {
	if c == nil || c.DB == nil {
		return matcher.Voiceprint{}, false, errors.New(errDBClientNil)
	}
	var row VoiceprintRow
	err := c.DB.Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return matcher.Voiceprint{}, false, nil
	}
	if err != nil {
		return matcher.Voiceprint{}, false, fmt.Errorf("querying voiceprint: %w", err)
	}
	vp, err := DecodeVoiceprint(row.Blob)
	if err != nil {
		return matcher.Voiceprint{}, false, err
	}
	return vp, true, nil
}

// DeleteUser removes all samples and the voiceprint for a user. Audit
// records are kept.
func (c *DBClient) DeleteUser(userID string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&Sample{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&VoiceprintRow{}).Error; err != nil {
			return err
		}
		return nil
	})
}

// RecordAttempt appends one authentication decision to the audit trail.
func (c *DBClient) RecordAttempt(userID string, res matcher.MatchResult) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	attempt := AuthAttempt{
		ID:         uuid.NewString(),
		UserID:     userID,
		Similarity: res.Similarity,
		Threshold:  res.Threshold,
		Accepted:   res.Accepted,
	}
	if err := c.DB.Create(&attempt).Error; err != nil {
		return fmt.Errorf("recording attempt: %w", err)
	}
	return nil
}

// ListAttempts returns the most recent audit records for a user, newest
// first. limit <= 0 returns all records.
func (c *DBClient) ListAttempts(userID string, limit int) ([]AuthAttempt, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	q := c.DB.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []AuthAttempt
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying attempts: %w", err)
	}
	return rows, nil
}
