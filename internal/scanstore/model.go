package scanstore

import (
	"time"

	"github.com/vinscan/vinscan/internal/scan"
)

// ScanRecord is the persisted result of one successful scan session.
type ScanRecord struct {
	ID                string      `gorm:"primaryKey" json:"id"`
	DeviceID          string      `gorm:"not null;index" json:"device_id"`
	SessionID         string      `gorm:"not null;index" json:"session_id"`
	VIN               string      `gorm:"not null;index" json:"vin"`
	Confidence        float64     `gorm:"not null" json:"confidence"`
	ImageQuality      float64     `json:"image_quality"`
	Source            scan.Source `gorm:"not null" json:"source"`
	Attempts          int         `json:"attempts"`
	DurationMs        int64       `json:"duration_ms"`
	KnownManufacturer bool        `json:"known_manufacturer"`
	ScannedAt         time.Time   `gorm:"not null;index" json:"scanned_at"`
	CreatedAt         time.Time   `json:"created_at"`
}

// FromOutcome builds a record from an accepted scan outcome. The outcome
// must carry a frame.
func FromOutcome(deviceID string, out scan.Outcome) ScanRecord {
	return ScanRecord{
		ID:                out.Frame.ID,
		DeviceID:          deviceID,
		SessionID:         out.SessionID,
		VIN:               out.Frame.VIN,
		Confidence:        out.Frame.Confidence,
		ImageQuality:      out.Frame.ImageQuality,
		Source:            out.Frame.Source,
		Attempts:          out.Attempts,
		DurationMs:        out.Duration.Milliseconds(),
		KnownManufacturer: out.Frame.KnownManufacturer,
		ScannedAt:         out.Frame.Timestamp,
	}
}
