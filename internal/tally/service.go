package tally

import (
	"context"

	"scrutin/internal/schema"
)

// Source supplies the records a Service consolidates.
type Source interface {
	Precincts(ctx context.Context) ([]schema.Precinct, error)
	Lists(ctx context.Context) ([]schema.CandidateList, error)
	Submissions(ctx context.Context, round int) ([]Submission, error)
	Participation(ctx context.Context, round int) ([]schema.ParticipationRecord, error)
}

// Service consolidates rounds read from a Source.
type Service struct {
	source Source
}

// NewService builds a Service over source.
func NewService(source Source) *Service {
	return &Service{source: source}
}

// Consolidate reads and consolidates round. Operators see only their own
// precinct because the Source reads through the access guard.
func (s *Service) Consolidate(ctx context.Context, round int) (Consolidation, error) {
	precincts, err := s.source.Precincts(ctx)
	if err != nil {
		return Consolidation{}, err
	}
	lists, err := s.source.Lists(ctx)
	if err != nil {
		return Consolidation{}, err
	}
	subs, err := s.source.Submissions(ctx, round)
	if err != nil {
		return Consolidation{}, err
	}
	return Consolidate(precincts, lists, subs, round)
}

// Participation reads round participation and consolidates it at hour.
func (s *Service) Participation(ctx context.Context, round, hour int) (ParticipationSummary, error) {
	records, err := s.source.Participation(ctx, round)
	if err != nil {
		return ParticipationSummary{}, err
	}
	return SummarizeParticipation(records, hour), nil
}
