package client

import (
	"context"
	"fmt"

	"github.com/zqadmin/ojadmin/types"
)

// Endpoint paths of the problem API, relative to the base URL.
const (
	ProblemsPath = "/api/problem/"
	TagsPath     = "/api/problem/tags/all"
)

// ProblemDetailPath returns the path of a single problem.
func ProblemDetailPath(id int) string {
	return fmt.Sprintf("/api/problem/%d", id)
}

// TestCasesPath returns the test case upload path of a problem.
func TestCasesPath(problemID int) string {
	return fmt.Sprintf("/api/problem/%d/testcases", problemID)
}

// SolutionsPath returns the solution path of a problem.
func SolutionsPath(problemID int) string {
	return fmt.Sprintf("/api/problem/%d/solutions", problemID)
}

// ProblemAPI maps each problem endpoint to a typed call. Every call
// performs exactly one request.
type ProblemAPI struct {
	req Requester
}

// NewProblemAPI constructs the problem API on top of req.
func NewProblemAPI(req Requester) *ProblemAPI {
	return &ProblemAPI{req: req}
}

// GetProblemList returns the public problems plus those set by the caller.
func (a *ProblemAPI) GetProblemList(ctx context.Context) ([]types.ProblemListItem, error) {
	var out []types.ProblemListItem
	if err := a.req.Get(ctx, ProblemsPath, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProblemDetail returns a single problem. A missing problem yields an
// error matching ErrNotFound.
func (a *ProblemAPI) GetProblemDetail(ctx context.Context, id int) (types.ProblemDetail, error) {
	var out types.ProblemDetail
	if err := a.req.Get(ctx, ProblemDetailPath(id), &out); err != nil {
		return types.ProblemDetail{}, err
	}
	return out, nil
}

// CreateProblem creates a problem; the server creates the nested examples
// and tag links.
func (a *ProblemAPI) CreateProblem(ctx context.Context, input types.ProblemCreateInput) (types.ProblemDetail, error) {
	var out types.ProblemDetail
	if err := a.req.Post(ctx, ProblemsPath, input, &out); err != nil {
		return types.ProblemDetail{}, err
	}
	return out, nil
}

// GetTags returns every tag.
func (a *ProblemAPI) GetTags(ctx context.Context) ([]types.Tag, error) {
	var out []types.Tag
	if err := a.req.Get(ctx, TagsPath, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadTestCase posts a caller assembled multipart payload.
func (a *ProblemAPI) UploadTestCase(ctx context.Context, problemID int, form *FormData) (types.TestCase, error) {
	if form == nil {
		return types.TestCase{}, fmt.Errorf("upload test case: nil form")
	}
	var out types.TestCase
	if err := a.req.Post(ctx, TestCasesPath(problemID), form.Body(), &out, WithContentType(form.ContentType())); err != nil {
		return types.TestCase{}, err
	}
	return out, nil
}

// CreateSolution publishes a solution for a problem.
func (a *ProblemAPI) CreateSolution(ctx context.Context, problemID int, input types.SolutionInput) (types.Solution, error) {
	var out types.Solution
	if err := a.req.Post(ctx, SolutionsPath(problemID), input, &out); err != nil {
		return types.Solution{}, err
	}
	return out, nil
}
