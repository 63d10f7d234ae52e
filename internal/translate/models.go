package translate

import "time"

type RecordStatus string

const (
	RecordCompleted RecordStatus = "completed"
	RecordCancelled RecordStatus = "cancelled"
	RecordFailed    RecordStatus = "failed"
)

// Record is one finished translation, kept for the history listing.
type Record struct {
	ID             uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	RecordID       string       `gorm:"type:varchar(26);uniqueIndex;not null" json:"record_id"`
	UserID         uint64       `gorm:"index;not null" json:"-"`
	Model          string       `gorm:"type:varchar(64);not null" json:"model"`
	SourceLanguage string       `gorm:"type:varchar(64);not null" json:"source_language"`
	TargetLanguage string       `gorm:"type:varchar(64);not null" json:"target_language"`
	SourceText     string       `gorm:"type:text;not null" json:"source_text"`
	TranslatedText string       `gorm:"type:text" json:"translated_text"`
	Status         RecordStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	Error          *string      `gorm:"type:text" json:"error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func (Record) TableName() string { return "translation_records" }

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one queued asynchronous translation.
type Job struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID uint64 `gorm:"index;not null"`

	Model          string `gorm:"type:varchar(64)"`
	SourceLanguage string `gorm:"type:varchar(64);not null"`
	TargetLanguage string `gorm:"type:varchar(64);not null"`
	SourceText     string `gorm:"type:text;not null"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_user_idempo,unique" json:"idempotency_key"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	ResultRecordID *string `gorm:"type:varchar(26);index"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Job) TableName() string { return "translation_jobs" }
