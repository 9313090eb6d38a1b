package router

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/models"
)

// JobStore handles router job rows and their status transitions.
type JobStore struct {
	db *gorm.DB
}

func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) GetByID(ctx context.Context, id string) (*models.RouterJob, error) {
	var j models.RouterJob
	if err := s.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// UserByID loads the job owner.
func (s *JobStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// MarkRunning transitions queued -> running. A second delivery of the same
// message sees zero rows affected and skips the job.
func (s *JobStore) MarkRunning(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.RouterJob{}).
		Where("id = ? AND status = ?", id, models.RouterJobQueued).
		Update("status", models.RouterJobRunning)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *JobStore) MarkSucceeded(ctx context.Context, id, requestID, finalContent string) error {
	return s.db.WithContext(ctx).Model(&models.RouterJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            models.RouterJobSucceeded,
			"result_request_id": requestID,
			"final_content":     finalContent,
		}).Error
}

func (s *JobStore) MarkFailed(ctx context.Context, id, msg string) error {
	return s.db.WithContext(ctx).Model(&models.RouterJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": models.RouterJobFailed,
			"error":  msg,
		}).Error
}

// DecodePayload restores the chat request stored at enqueue time.
func (s *JobStore) DecodePayload(j *models.RouterJob) (*ChatRequest, error) {
	var req ChatRequest
	if err := json.Unmarshal([]byte(j.Payload), &req); err != nil {
		return nil, fmt.Errorf("decode job %s payload: %w", j.ID, err)
	}
	return &req, nil
}
