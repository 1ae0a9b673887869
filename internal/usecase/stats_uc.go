package usecase

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"vidiwise/internal/domain/model"
	"vidiwise/internal/domain/ports/repository"
	"vidiwise/internal/infra/logging"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// JobStats summarizes what this process tracks and what history holds.
type JobStats struct {
	Tracked map[model.JobState]int `json:"tracked"`
	Active  []string               `json:"active"`
	Recent  []model.Job            `json:"recent,omitempty"`
}

type StatsUseCase interface {
	Totals(ctx context.Context, recent int) (JobStats, error)
}

type statsUC struct {
	jobs    *JobClient
	history repository.VideoJobRepository // optional
	log     *zerolog.Logger
}

func NewStatsUseCase(jobs *JobClient, history repository.VideoJobRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{jobs: jobs, history: history, log: logging.Component(logger, "stats_uc")}
}

func (s *statsUC) Totals(ctx context.Context, recent int) (JobStats, error) {
	st := JobStats{Tracked: map[model.JobState]int{}}
	for _, j := range s.jobs.Jobs() {
		st.Tracked[j.State]++
		if !j.State.IsTerminal() {
			st.Active = append(st.Active, j.ID)
		}
	}
	sort.Strings(st.Active)
	if s.history == nil || recent <= 0 {
		return st, nil
	}
	jobs, err := s.history.ListRecent(ctx, nil, recent)
	if err != nil {
		return st, err
	}
	for _, j := range jobs {
		st.Recent = append(st.Recent, *j)
	}
	return st, nil
}
