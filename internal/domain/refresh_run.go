package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// RunStatus represents how a refresh run ended.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"  // new photos were downloaded
	RunStatusFallback  RunStatus = "fallback"   // nothing new, served from cache
	RunStatusCacheFull RunStatus = "cache_full" // catalog at capacity, no network
	RunStatusExhausted RunStatus = "exhausted"  // nothing new and nothing cached
	RunStatusCanceled  RunStatus = "canceled"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// RefreshRun records the outcome of one refresh invocation.
type RefreshRun struct {
	ID               string      `gorm:"type:text;primaryKey" json:"id"`
	Status           RunStatus   `gorm:"type:text;index:idx_refresh_runs_status;default:running" json:"status"`
	Candidates       int         `gorm:"default:0" json:"candidates"`
	Attempted        int         `gorm:"default:0" json:"attempted"`
	Added            int         `gorm:"default:0" json:"added"`
	SkippedDuplicate int         `gorm:"default:0" json:"skipped_duplicate"`
	SkippedNoURL     int         `gorm:"default:0" json:"skipped_no_url"`
	Failed           int         `gorm:"default:0" json:"failed"`
	CatalogSize      int         `gorm:"default:0" json:"catalog_size"`
	Returned         int         `gorm:"default:0" json:"returned"`
	AddedIDs         StringArray `gorm:"type:text" json:"added_ids"`
	FetchError       string      `gorm:"type:text" json:"fetch_error,omitempty"`
	StartedAt        time.Time   `gorm:"index:idx_refresh_runs_started" json:"started_at"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// TableName returns the database table name for RefreshRun.
func (RefreshRun) TableName() string {
	return "refresh_runs"
}
