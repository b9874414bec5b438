package store

import (
	"context"
	"database/sql"

	"github.com/zqadmin/ojadmin/types"
)

// SolutionRepository handles persistence for solutions.
type SolutionRepository struct {
	db *sql.DB
}

func NewSolutionRepository(db *sql.DB) *SolutionRepository {
	return &SolutionRepository{db: db}
}

// Create inserts the solution and resolves the author's username. The name
// is left empty when the author row cannot be found.
func (r *SolutionRepository) Create(ctx context.Context, solution types.Solution) (types.Solution, error) {
	const query = `
		WITH inserted AS (
			INSERT INTO solutions (problem_id, user_id, language, code, description)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, user_id, created_at
		)
		SELECT i.id, i.created_at, u.username
		FROM inserted i
		LEFT JOIN users u ON u.id = i.user_id`
	var username sql.NullString
	if err := r.db.QueryRowContext(
		ctx,
		query,
		solution.ProblemID,
		solution.UserID,
		solution.Language,
		solution.Code,
		solution.Description,
	).Scan(&solution.ID, &solution.CreatedAt, &username); err != nil {
		return types.Solution{}, err
	}
	solution.UserName = username.String
	return solution, nil
}
