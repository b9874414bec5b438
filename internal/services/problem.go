package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zqadmin/ojadmin/internal/metrics"
	"github.com/zqadmin/ojadmin/internal/mq"
	"github.com/zqadmin/ojadmin/internal/store"
	"github.com/zqadmin/ojadmin/pkg/logger"
	"github.com/zqadmin/ojadmin/types"
)

// ProblemRepository defines persistence operations for problems.
type ProblemRepository interface {
	List(ctx context.Context, filter store.ProblemFilter) ([]types.ProblemListItem, error)
	Get(ctx context.Context, id int, filter store.ProblemFilter) (types.ProblemDetail, error)
	Exists(ctx context.Context, id int, filter store.ProblemFilter) error
	Create(ctx context.Context, input types.ProblemCreateInput, setterID int) (types.ProblemDetail, error)
	ListTags(ctx context.Context) ([]types.Tag, error)
}

// EventPublisher publishes domain events. *mq.MQ satisfies it.
type EventPublisher interface {
	PublishJSON(ctx context.Context, channel string, event any) (string, error)
}

// ProblemService encapsulates problem use-cases.
type ProblemService struct {
	repo     ProblemRepository
	events   EventPublisher
	metrics  *metrics.Manager
	validate *validator.Validate
	log      logger.Logger
}

func NewProblemService(repo ProblemRepository, events EventPublisher, m *metrics.Manager, log logger.Logger) *ProblemService {
	if log == nil {
		log = logger.Nop()
	}
	return &ProblemService{
		repo:     repo,
		events:   events,
		metrics:  m,
		validate: newValidator(),
		log:      log.Named("problems"),
	}
}

// List returns the problems visible to viewer, newest first. Admins see
// every problem; other users see public problems and their own.
func (s *ProblemService) List(ctx context.Context, viewer types.User) ([]types.ProblemListItem, error) {
	return s.repo.List(ctx, visibleTo(viewer))
}

// Get returns a problem under the same visibility rule as List. A private
// problem of another setter is reported as store.ErrNotFound.
func (s *ProblemService) Get(ctx context.Context, id int, viewer types.User) (types.ProblemDetail, error) {
	return s.repo.Get(ctx, id, visibleTo(viewer))
}

// Create validates input and stores it with setter as the problem setter.
// The problem.created event is published after the transaction commits; a
// failed publish is logged and does not fail the request.
func (s *ProblemService) Create(ctx context.Context, input types.ProblemCreateInput, setter types.User) (types.ProblemDetail, error) {
	if err := s.validate.StructCtx(ctx, input); err != nil {
		return types.ProblemDetail{}, newValidationError(err)
	}

	created, err := s.repo.Create(ctx, input, setter.ID)
	if err != nil {
		return types.ProblemDetail{}, fmt.Errorf("create problem: %w", err)
	}
	s.metrics.ProblemCreated()

	s.publish(ctx, mq.ChannelProblemCreated, mq.ProblemCreated{
		ProblemID:  created.ID,
		Title:      created.Title,
		SetterID:   setter.ID,
		IsPublic:   created.IsPublic,
		OccurredAt: time.Now().UTC(),
	})
	s.log.Info(ctx, "problem created",
		logger.Int("problem_id", created.ID),
		logger.Int("setter_id", setter.ID),
		logger.Int("examples", len(created.Examples)),
	)
	return created, nil
}

func (s *ProblemService) ListTags(ctx context.Context) ([]types.Tag, error) {
	return s.repo.ListTags(ctx)
}

func visibleTo(viewer types.User) store.ProblemFilter {
	return store.ProblemFilter{All: viewer.IsAdmin(), ViewerID: viewer.ID}
}

func (s *ProblemService) publish(ctx context.Context, channel string, event any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishJSON(ctx, channel, event); err != nil {
		s.metrics.EventFailed(channel)
		s.log.Warn(ctx, "publish event failed", logger.String("channel", channel), logger.Error(err))
	}
}
