package store

import (
	"context"
	"database/sql"

	"github.com/zqadmin/ojadmin/types"
)

// TestCaseRepository handles persistence for test case metadata. The input
// files themselves live in object storage.
type TestCaseRepository struct {
	db *sql.DB
}

func NewTestCaseRepository(db *sql.DB) *TestCaseRepository {
	return &TestCaseRepository{db: db}
}

func (r *TestCaseRepository) Create(ctx context.Context, tc types.TestCase) (types.TestCase, error) {
	const query = `
		INSERT INTO testcases (problem_id, data_type, weight, expected_output, object_key, input_file)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		tc.ProblemID,
		tc.DataType,
		tc.Weight,
		tc.ExpectedOutput,
		tc.ObjectKey,
		tc.InputFile,
	).Scan(&tc.ID, &tc.CreatedAt); err != nil {
		return types.TestCase{}, err
	}
	return tc, nil
}
