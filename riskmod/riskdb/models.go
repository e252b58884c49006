package riskdb

import (
	"time"

	"gorm.io/gorm"
)

type Account struct {
	ID        string `gorm:"primarykey"`
	Tier      string
	CreatedAt time.Time
}

type ScheduledPost struct {
	gorm.Model
	UserID       string `gorm:"index:idx_scheduled_user_time"`
	PostID       string `gorm:"uniqueIndex"`
	Destination  string
	Title        string
	ScheduledFor time.Time `gorm:"index:idx_scheduled_user_time"`
	// pending, posted, cancelled
	Status string
}

type PostOutcome struct {
	ID          uint   `gorm:"primarykey"`
	UserID      string `gorm:"index:idx_outcome_user_time"`
	Destination string
	Status      string
	Reason      string
	OccurredAt  time.Time `gorm:"index:idx_outcome_user_time"`
}

type ModerationFlag struct {
	ID          uint   `gorm:"primarykey"`
	UserID      string `gorm:"index:idx_flag_user_time"`
	Reason      string
	Description string
	Status      string
	Destination string
	CreatedAt   time.Time `gorm:"index:idx_flag_user_time"`
}

// Raw rule payload for a destination, keyed by normalized destination name.
type DestinationRules struct {
	Name      string `gorm:"primarykey"`
	Payload   []byte
	UpdatedAt time.Time
}

// One row per user, UTC day, and metric type; later evaluations on the same day overwrite earlier ones.
type RiskSnapshot struct {
	ID                  uint   `gorm:"primarykey"`
	UserID              string `gorm:"uniqueIndex:idx_snapshot_user_day_metric"`
	SnapshotDate        string `gorm:"uniqueIndex:idx_snapshot_user_day_metric"`
	MetricType          string `gorm:"uniqueIndex:idx_snapshot_user_day_metric"`
	GeneratedAt         time.Time
	Warnings            []byte
	UpcomingPosts       int
	FlaggedDestinations int
	RemovalWarnings     int
	CadenceConflicts    int
}

const (
	PostStatusPending = "pending"

	MetricTypeRisk = "risk"
)

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Account{},
		&ScheduledPost{},
		&PostOutcome{},
		&ModerationFlag{},
		&DestinationRules{},
		&RiskSnapshot{},
	)
}
