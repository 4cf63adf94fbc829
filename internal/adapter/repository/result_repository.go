package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
)

// ResultRepository stores task, graph and strategy data
type ResultRepository struct {
	db *gorm.DB
}

var _ repositories.ResultRepository = (*ResultRepository)(nil)

// NewResultRepository creates a new result repository
func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// ReplaceTasks deletes the meeting's tasks and inserts the new list in one transaction
func (r *ResultRepository) ReplaceTasks(ctx context.Context, meetingID uuid.UUID, tasks []*entities.MeetingTask) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meeting_id = ?", meetingID).Delete(&entities.MeetingTask{}).Error; err != nil {
			return fmt.Errorf("failed to delete tasks: %w", err)
		}
		if len(tasks) == 0 {
			return nil
		}
		for _, t := range tasks {
			t.MeetingID = meetingID
			if t.ID == uuid.Nil {
				t.ID = uuid.New()
			}
		}
		if err := tx.Create(&tasks).Error; err != nil {
			return fmt.Errorf("failed to insert tasks: %w", err)
		}
		return nil
	})
}

// ListTasks retrieves the tasks of a meeting
func (r *ResultRepository) ListTasks(ctx context.Context, meetingID uuid.UUID) ([]*entities.MeetingTask, error) {
	var tasks []*entities.MeetingTask
	if err := conn(ctx, r.db).
		Where("meeting_id = ?", meetingID).
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpsertGraph inserts or replaces the meeting's graph
func (r *ResultRepository) UpsertGraph(ctx context.Context, graph *entities.MeetingGraph) error {
	if graph.ID == uuid.Nil {
		graph.ID = uuid.New()
	}
	if err := conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "meeting_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"graph", "model", "updated_at"}),
		}).
		Create(graph).Error; err != nil {
		return fmt.Errorf("failed to upsert graph: %w", err)
	}
	return nil
}

// ListStrategiesByDomain retrieves the active strategies of a company
func (r *ResultRepository) ListStrategiesByDomain(ctx context.Context, domain string) ([]*entities.CompanyStrategy, error) {
	var strategies []*entities.CompanyStrategy
	if err := conn(ctx, r.db).
		Where("domain = ? AND is_deleted = false", strings.ToLower(domain)).
		Order("created_at ASC").
		Find(&strategies).Error; err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	return strategies, nil
}
