package riskdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bluesky-social/postwatch/riskmod/engine"
	"github.com/bluesky-social/postwatch/riskmod/service"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQL-backed data source for the risk engine, plus the account directory used by the request service.
type Store struct {
	db *gorm.DB
}

var _ engine.DataSource = (*Store)(nil)
var _ service.AccountDirectory = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) LookupAccount(ctx context.Context, userID string) (*service.Account, error) {
	var row Account
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, service.ErrAccountNotFound
	} else if err != nil {
		return nil, err
	}
	return &service.Account{ID: row.ID, Tier: row.Tier}, nil
}

func (s *Store) GetUpcomingScheduledPosts(ctx context.Context, userID string, now time.Time) ([]engine.ScheduledPost, error) {
	var rows []ScheduledPost
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND scheduled_for >= ?", userID, PostStatusPending, now.UTC()).
		Order("scheduled_for ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]engine.ScheduledPost, len(rows))
	for i, r := range rows {
		out[i] = engine.ScheduledPost{
			ID:           r.PostID,
			Destination:  r.Destination,
			ScheduledFor: r.ScheduledFor.UTC(),
			Title:        r.Title,
		}
	}
	return out, nil
}

func (s *Store) GetRecentOutcomes(ctx context.Context, userID string, since time.Time) ([]engine.Outcome, error) {
	var rows []PostOutcome
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND occurred_at >= ?", userID, since.UTC()).
		Order("occurred_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]engine.Outcome, len(rows))
	for i, r := range rows {
		out[i] = engine.Outcome{
			Destination: r.Destination,
			Status:      r.Status,
			Reason:      r.Reason,
			OccurredAt:  r.OccurredAt.UTC(),
		}
	}
	return out, nil
}

func (s *Store) GetRecentFlags(ctx context.Context, userID string, since time.Time) ([]engine.Flag, error) {
	var rows []ModerationFlag
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since.UTC()).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]engine.Flag, len(rows))
	for i, r := range rows {
		out[i] = engine.Flag{
			Reason:      r.Reason,
			Description: r.Description,
			Status:      r.Status,
			CreatedAt:   r.CreatedAt.UTC(),
			Destination: r.Destination,
		}
	}
	return out, nil
}

func (s *Store) GetRuleSets(ctx context.Context, destinations []string) ([]engine.RawRuleSet, error) {
	if len(destinations) == 0 {
		return []engine.RawRuleSet{}, nil
	}
	var rows []DestinationRules
	if err := s.db.WithContext(ctx).Where("name IN ?", destinations).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]engine.RawRuleSet, len(rows))
	for i, r := range rows {
		out[i] = engine.RawRuleSet{Destination: r.Name, Payload: r.Payload}
	}
	return out, nil
}

// Upserts the snapshot for the user's UTC day.
func (s *Store) SaveSnapshot(ctx context.Context, snap engine.Snapshot) error {
	warnings, err := json.Marshal(snap.Warnings)
	if err != nil {
		return err
	}
	row := RiskSnapshot{
		UserID:              snap.UserID,
		SnapshotDate:        snap.GeneratedAt.UTC().Format(time.DateOnly),
		MetricType:          MetricTypeRisk,
		GeneratedAt:         snap.GeneratedAt.UTC(),
		Warnings:            warnings,
		UpcomingPosts:       snap.Stats.UpcomingPosts,
		FlaggedDestinations: snap.Stats.FlaggedDestinations,
		RemovalWarnings:     snap.Stats.RemovalWarnings,
		CadenceConflicts:    snap.Stats.CadenceConflicts,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "snapshot_date"}, {Name: "metric_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"generated_at", "warnings", "upcoming_posts", "flagged_destinations", "removal_warnings", "cadence_conflicts",
		}),
	}).Create(&row).Error
}

// Returns the stored snapshot for the user on the UTC day of "at", or nil.
func (s *Store) GetSnapshot(ctx context.Context, userID string, at time.Time) (*engine.Snapshot, error) {
	var row RiskSnapshot
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND snapshot_date = ? AND metric_type = ?", userID, at.UTC().Format(time.DateOnly), MetricTypeRisk).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var warnings []engine.Warning
	if err := json.Unmarshal(row.Warnings, &warnings); err != nil {
		return nil, fmt.Errorf("decoding snapshot warnings: %w", err)
	}
	return &engine.Snapshot{
		UserID:      row.UserID,
		GeneratedAt: row.GeneratedAt.UTC(),
		Warnings:    warnings,
		Stats: engine.EvaluationStats{
			UpcomingPosts:       row.UpcomingPosts,
			FlaggedDestinations: row.FlaggedDestinations,
			RemovalWarnings:     row.RemovalWarnings,
			CadenceConflicts:    row.CadenceConflicts,
		},
	}, nil
}

// Stores a raw rule payload under the normalized destination name, replacing any previous payload.
func (s *Store) PutRuleSet(ctx context.Context, destination string, payload []byte) error {
	name := engine.NormalizeDestination(destination)
	if name == engine.UnknownDestination {
		return fmt.Errorf("destination does not normalize to a usable name: %q", destination)
	}
	row := DestinationRules{Name: name, Payload: payload, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
}
