package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Directions of a code record
const (
	DirectionReceived = "rx"
	DirectionSent     = "tx"
)

// CodeRecord is one decoded or encoded device command
type CodeRecord struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	Protocol   string    `gorm:"index;size:32;not null" json:"protocol"`
	Direction  string    `gorm:"index;size:2;not null" json:"direction"`
	DeviceID   string    `gorm:"index;size:16" json:"device_id"`
	Channel    *int      `json:"channel,omitempty"`
	Unit       *int      `json:"unit,omitempty"`
	All        bool      `gorm:"default:false" json:"all,omitempty"`
	State      string    `gorm:"size:16" json:"state,omitempty"`
	DimLevel   *int      `json:"dimlevel,omitempty"`
	PulseCount int       `gorm:"default:0" json:"pulse_count"`
	Pulses     string    `gorm:"type:text" json:"pulses"` // space separated microseconds
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for CodeRecord
func (CodeRecord) TableName() string {
	return "code_records"
}

// BeforeCreate hook to ensure CreatedAt is set
func (r *CodeRecord) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Direction != DirectionReceived && r.Direction != DirectionSent {
		return fmt.Errorf("invalid direction %q", r.Direction)
	}
	return nil
}

// SetPulses stores a pulse train in its text form
func (r *CodeRecord) SetPulses(pulses []int) {
	parts := make([]string, len(pulses))
	for i, p := range pulses {
		parts[i] = strconv.Itoa(p)
	}
	r.Pulses = strings.Join(parts, " ")
	r.PulseCount = len(pulses)
}

// PulseTrain parses the stored pulse train
func (r *CodeRecord) PulseTrain() ([]int, error) {
	fields := strings.Fields(r.Pulses)
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("record %d: pulse %d: %w", r.ID, i, err)
		}
		out[i] = v
	}
	return out, nil
}
