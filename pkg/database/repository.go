package database

import (
	"time"

	"gorm.io/gorm"
)

// CodeRepository handles code history database operations
type CodeRepository struct {
	db *gorm.DB
}

// NewCodeRepository creates a new code repository
func NewCodeRepository(db *gorm.DB) *CodeRepository {
	return &CodeRepository{db: db}
}

// Create adds a new code record
func (r *CodeRepository) Create(rec *CodeRecord) error {
	return r.db.Create(rec).Error
}

// GetRecent retrieves the most recent N records
func (r *CodeRepository) GetRecent(limit int) ([]CodeRecord, error) {
	var records []CodeRecord
	err := r.db.Order("created_at DESC, id DESC").Limit(limit).Find(&records).Error
	return records, err
}

// GetRecentPaginated retrieves records with pagination
func (r *CodeRepository) GetRecentPaginated(page, perPage int) ([]CodeRecord, int64, error) {
	var records []CodeRecord
	var total int64

	// Count total records
	if err := r.db.Model(&CodeRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Get paginated results
	offset := (page - 1) * perPage
	err := r.db.Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(perPage).
		Find(&records).Error

	return records, total, err
}

// GetByProtocol retrieves records for a specific protocol
func (r *CodeRepository) GetByProtocol(protocol string, limit int) ([]CodeRecord, error) {
	var records []CodeRecord
	err := r.db.Where("protocol = ?", protocol).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// GetByDevice retrieves records for one device of a protocol
func (r *CodeRepository) GetByDevice(protocol, deviceID string, limit int) ([]CodeRecord, error) {
	var records []CodeRecord
	err := r.db.Where("protocol = ? AND device_id = ?", protocol, deviceID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// Count returns the number of stored records
func (r *CodeRepository) Count() (int64, error) {
	var total int64
	err := r.db.Model(&CodeRecord{}).Count(&total).Error
	return total, err
}

// CountByProtocol returns the number of stored records per protocol
func (r *CodeRepository) CountByProtocol() (map[string]int64, error) {
	var rows []struct {
		Protocol string
		Total    int64
	}
	err := r.db.Model(&CodeRecord{}).
		Select("protocol, count(*) AS total").
		Group("protocol").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Protocol] = row.Total
	}
	return out, nil
}

// DeleteOlderThan deletes records older than the specified time
func (r *CodeRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", before).Delete(&CodeRecord{})
	return result.RowsAffected, result.Error
}
