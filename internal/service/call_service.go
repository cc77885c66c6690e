package service

import (
	"Circlet/internal/apperr"
	"Circlet/internal/db"
	"Circlet/internal/model"
	"Circlet/internal/repo"
	"context"
)

// CallTracker exposes the live call table.
type CallTracker interface {
	Snapshot() []model.Call
}

type CallService interface {
	Active(userID string) []model.Call
	History(ctx context.Context, userID string, page int64) (*db.PaginatedResult[model.Call], error)
}

type callService struct {
	tracker CallTracker
	repo    repo.CallRepository
}

func NewCallService(tracker CallTracker, calls repo.CallRepository) CallService {
	return &callService{
		tracker: tracker,
		repo:    calls,
	}
}

// Active returns the ringing or active calls userID takes part in.
func (s *callService) Active(userID string) []model.Call {
	calls := Filter(s.tracker.Snapshot(), func(c model.Call) bool {
		return c.HasParticipant(userID)
	})
	if calls == nil {
		calls = []model.Call{}
	}
	return calls
}

func (s *callService) History(ctx context.Context, userID string, page int64) (*db.PaginatedResult[model.Call], error) {
	result, err := s.repo.History(ctx, userID, page)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to load call history")
	}
	return result, nil
}
