package history

import (
	"time"

	"github.com/ethpandaops/reportoor/pkg/model"
)

// Run is the database row for a summarized run record.
type Run struct {
	ID         uint      `gorm:"primaryKey"`
	RunID      string    `gorm:"uniqueIndex;size:128"`
	SuiteID    string    `gorm:"index;size:128"`
	Status     string    `gorm:"size:32"`
	Passed     int       `gorm:""`
	Failed     int       `gorm:""`
	Skipped    int       `gorm:""`
	Total      int       `gorm:""`
	DurationMS int64     `gorm:""`
	CreatedAt  time.Time `gorm:"index"`
}

// TableName overrides the gorm table name.
func (Run) TableName() string {
	return "run_records"
}

func fromRecord(rec model.RunRecord) Run {
	return Run{
		RunID:      rec.RunID,
		SuiteID:    rec.SuiteID,
		Status:     rec.Status,
		Passed:     rec.Passed,
		Failed:     rec.Failed,
		Skipped:    rec.Skipped,
		Total:      rec.Total,
		DurationMS: rec.DurationMS,
		CreatedAt:  rec.CreatedAt,
	}
}

func (r Run) toRecord() model.RunRecord {
	return model.RunRecord{
		RunID:      r.RunID,
		SuiteID:    r.SuiteID,
		Status:     r.Status,
		Passed:     r.Passed,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		Total:      r.Total,
		DurationMS: r.DurationMS,
		CreatedAt:  r.CreatedAt,
	}
}
