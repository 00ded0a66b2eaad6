package scanstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vinscan/vinscan/internal/shared"
)

const maxListLimit = 100

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&ScanRecord{})
}

func (s *Store) Save(ctx context.Context, rec *ScanRecord) error {
	if rec.ID == "" {
		rec.ID = shared.NewID("scan_")
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *Store) GetByID(ctx context.Context, id string) (*ScanRecord, error) {
	var rec ScanRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &rec, err
}

// Query filters a scan listing. Zero values mean "no filter".
type Query struct {
	DeviceID string
	VIN      string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// List returns matching records newest first. Limit is clamped to 100.
func (s *Store) List(ctx context.Context, q Query) ([]ScanRecord, error) {
	limit := q.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	tx := s.db.WithContext(ctx).Model(&ScanRecord{})
	if q.DeviceID != "" {
		tx = tx.Where("device_id = ?", q.DeviceID)
	}
	if q.VIN != "" {
		tx = tx.Where("vin = ?", q.VIN)
	}
	if !q.From.IsZero() {
		tx = tx.Where("scanned_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		tx = tx.Where("scanned_at <= ?", q.To)
	}

	var records []ScanRecord
	err := tx.Order("scanned_at DESC").Limit(limit).Offset(q.Offset).Find(&records).Error
	return records, err
}

// CountByDevice reports how many scans a device has persisted.
func (s *Store) CountByDevice(ctx context.Context, deviceID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&ScanRecord{}).
		Where("device_id = ?", deviceID).Count(&count).Error
	return count, err
}

// DeleteOld removes records older than the retention window and returns
// how many were dropped.
func (s *Store) DeleteOld(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := s.db.WithContext(ctx).
		Where("scanned_at < ?", cutoff).Delete(&ScanRecord{})
	return result.RowsAffected, result.Error
}
