package services

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/zqadmin/ojadmin/internal/metrics"
	"github.com/zqadmin/ojadmin/types"
)

// SolutionRepository defines persistence operations for solutions.
type SolutionRepository interface {
	Create(ctx context.Context, solution types.Solution) (types.Solution, error)
}

// SolutionService encapsulates solution use-cases.
type SolutionService struct {
	repo     SolutionRepository
	problems ProblemRepository
	metrics  *metrics.Manager
	validate *validator.Validate
}

func NewSolutionService(repo SolutionRepository, problems ProblemRepository, m *metrics.Manager) *SolutionService {
	return &SolutionService{repo: repo, problems: problems, metrics: m, validate: newValidator()}
}

// Create publishes a solution by author for problemID. It returns
// store.ErrNotFound when the problem does not exist or is not visible to
// author.
func (s *SolutionService) Create(ctx context.Context, problemID int, input types.SolutionInput, author types.User) (types.Solution, error) {
	if err := s.validate.StructCtx(ctx, input); err != nil {
		return types.Solution{}, newValidationError(err)
	}
	if err := s.problems.Exists(ctx, problemID, visibleTo(author)); err != nil {
		return types.Solution{}, err
	}

	created, err := s.repo.Create(ctx, types.Solution{
		ProblemID:   problemID,
		UserID:      author.ID,
		Language:    input.Language,
		Code:        input.Code,
		Description: input.Description,
	})
	if err != nil {
		return types.Solution{}, err
	}
	if created.UserName == "" {
		created.UserName = author.Username
	}
	s.metrics.SolutionCreated()
	return created, nil
}
