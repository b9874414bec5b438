package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/zqadmin/ojadmin/internal/metrics"
	"github.com/zqadmin/ojadmin/internal/mq"
	"github.com/zqadmin/ojadmin/internal/storage"
	"github.com/zqadmin/ojadmin/pkg/logger"
	"github.com/zqadmin/ojadmin/types"
)

// TestCaseRepository defines persistence operations for test cases.
type TestCaseRepository interface {
	Create(ctx context.Context, tc types.TestCase) (types.TestCase, error)
}

// ObjectStore is the subset of *storage.Storage used for test case files.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// TestCaseUpload is a parsed test case upload. File is optional.
type TestCaseUpload struct {
	DataType       string  `json:"data_type" validate:"required,max=32"`
	Weight         float64 `json:"weight" validate:"gte=0"`
	ExpectedOutput string  `json:"expected_output"`

	FileName    string    `json:"-"`
	File        io.Reader `json:"-"`
	Size        int64     `json:"-"`
	ContentType string    `json:"-"`
}

// TestCaseService stores test case input files and their metadata.
type TestCaseService struct {
	repo     TestCaseRepository
	problems ProblemRepository
	objects  ObjectStore
	events   EventPublisher
	metrics  *metrics.Manager
	validate *validator.Validate
	log      logger.Logger
}

func NewTestCaseService(
	repo TestCaseRepository,
	problems ProblemRepository,
	objects ObjectStore,
	events EventPublisher,
	m *metrics.Manager,
	log logger.Logger,
) *TestCaseService {
	if log == nil {
		log = logger.Nop()
	}
	return &TestCaseService{
		repo:     repo,
		problems: problems,
		objects:  objects,
		events:   events,
		metrics:  m,
		validate: newValidator(),
		log:      log.Named("testcases"),
	}
}

// Upload stores the input file under a per-problem key, then records the
// test case. The stored object is removed again when the record cannot be
// written. Returns store.ErrNotFound when the problem does not exist or is
// not visible to uploader.
func (s *TestCaseService) Upload(ctx context.Context, problemID int, upload TestCaseUpload, uploader types.User) (types.TestCase, error) {
	if err := s.validate.StructCtx(ctx, upload); err != nil {
		return types.TestCase{}, newValidationError(err)
	}
	if err := s.problems.Exists(ctx, problemID, visibleTo(uploader)); err != nil {
		return types.TestCase{}, err
	}

	tc := types.TestCase{
		ProblemID:      problemID,
		DataType:       strings.TrimSpace(upload.DataType),
		Weight:         upload.Weight,
		ExpectedOutput: upload.ExpectedOutput,
	}

	if upload.File != nil {
		if s.objects == nil {
			return types.TestCase{}, errors.New("object storage is not configured")
		}
		key := storage.TestCaseKey(problemID, upload.FileName)
		size := upload.Size
		if size == 0 {
			size = -1
		}
		if err := s.objects.Put(ctx, key, upload.File, size, upload.ContentType); err != nil {
			return types.TestCase{}, fmt.Errorf("store test case input: %w", err)
		}
		url := s.objects.URL(key)
		tc.ObjectKey = key
		tc.InputFile = &url
	}

	created, err := s.repo.Create(ctx, tc)
	if err != nil {
		if tc.ObjectKey != "" {
			if delErr := s.objects.Delete(ctx, tc.ObjectKey); delErr != nil {
				s.log.Warn(ctx, "remove orphaned test case input failed",
					logger.String("key", tc.ObjectKey), logger.Error(delErr))
			}
		}
		return types.TestCase{}, fmt.Errorf("create test case: %w", err)
	}
	s.metrics.TestCaseUploaded()

	if s.events != nil {
		_, err := s.events.PublishJSON(ctx, mq.ChannelTestCaseUploaded, mq.TestCaseUploaded{
			ProblemID:  problemID,
			TestCaseID: created.ID,
			ObjectKey:  created.ObjectKey,
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			s.metrics.EventFailed(mq.ChannelTestCaseUploaded)
			s.log.Warn(ctx, "publish event failed",
				logger.String("channel", mq.ChannelTestCaseUploaded), logger.Error(err))
		}
	}
	return created, nil
}
