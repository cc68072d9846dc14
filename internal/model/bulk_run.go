package model

import (
	"time"

	"github.com/grand-thief-cash/tvaccess/internal/consts"
)

// BulkRun 批量授权运行的持久化记录。Subjects/Targets/SkippedSubjects 存 JSON 数组。
type BulkRun struct {
	ID              string           `gorm:"primaryKey;type:char(36)" json:"id"`
	Status          consts.RunStatus `gorm:"type:varchar(16);index" json:"status"`
	Subjects        string           `gorm:"type:text" json:"subjects"`
	Targets         string           `gorm:"type:text" json:"targets"`
	DurationSpec    string           `gorm:"column:duration_spec;type:varchar(16)" json:"duration_spec"`
	Total           int              `json:"total"`
	Success         int              `json:"success"`
	Errors          int              `json:"errors"`
	SkippedSubjects string           `gorm:"type:text" json:"skipped_subjects"`
	DurationMs      int64            `json:"duration_ms"`
	SuccessRate     float64          `json:"success_rate"`
	ErrorMessage    string           `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	FinishedAt      *time.Time       `json:"finished_at,omitempty"`
}

func (BulkRun) TableName() string { return "bulk_runs" }
