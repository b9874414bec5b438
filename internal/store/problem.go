package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/zqadmin/ojadmin/types"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ProblemFilter restricts which problems a viewer may see.
type ProblemFilter struct {
	// All lists every problem, regardless of visibility.
	All bool
	// ViewerID adds the viewer's own private problems to the public ones.
	ViewerID int
}

// Allows reports whether a problem with the given visibility and setter
// passes the filter.
func (f ProblemFilter) Allows(isPublic bool, setterID int) bool {
	return f.All || isPublic || (f.ViewerID > 0 && setterID == f.ViewerID)
}

func (f ProblemFilter) apply(query sq.SelectBuilder) sq.SelectBuilder {
	if f.All {
		return query
	}
	return query.Where(sq.Or{
		sq.Eq{"is_public": true},
		sq.Eq{"setter_id": f.ViewerID},
	})
}

// ProblemRepository handles persistence for problems, their tags and
// examples.
type ProblemRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

func NewProblemRepository(db *sql.DB) *ProblemRepository {
	return &ProblemRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *ProblemRepository) List(ctx context.Context, filter ProblemFilter) ([]types.ProblemListItem, error) {
	query := r.builder.
		Select("id", "title", "difficulty", "is_public", "created_at").
		From("problems").
		OrderBy("created_at DESC", "id DESC")
	query = filter.apply(query)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	problems := make([]types.ProblemListItem, 0)
	ids := make([]int, 0)
	for rows.Next() {
		var p types.ProblemListItem
		if err := rows.Scan(&p.ID, &p.Title, &p.Difficulty, &p.IsPublic, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Tags = []types.Tag{}
		problems = append(problems, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tags, err := r.tagsByProblem(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range problems {
		if t, ok := tags[problems[i].ID]; ok {
			problems[i].Tags = t
		}
	}
	return problems, nil
}

// Get returns the problem with its tags and examples. Problems the filter
// hides are reported as ErrNotFound.
func (r *ProblemRepository) Get(ctx context.Context, id int, filter ProblemFilter) (types.ProblemDetail, error) {
	return r.get(ctx, r.db, id, filter)
}

func (r *ProblemRepository) get(ctx context.Context, q queryer, id int, filter ProblemFilter) (types.ProblemDetail, error) {
	query := r.builder.
		Select("id", "title", "description", "input_description", "output_description",
			"analysis", "difficulty", "is_public", "created_at").
		From("problems").
		Where(sq.Eq{"id": id})
	sqlStr, args, err := filter.apply(query).ToSql()
	if err != nil {
		return types.ProblemDetail{}, err
	}

	var p types.ProblemDetail
	var inputDesc, outputDesc, analysis sql.NullString
	err = q.QueryRowContext(ctx, sqlStr, args...).Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&inputDesc,
		&outputDesc,
		&analysis,
		&p.Difficulty,
		&p.IsPublic,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ProblemDetail{}, ErrNotFound
		}
		return types.ProblemDetail{}, err
	}
	p.InputDescription = nullStringPtr(inputDesc)
	p.OutputDescription = nullStringPtr(outputDesc)
	p.Analysis = nullStringPtr(analysis)

	tags, err := r.tagsByProblem(ctx, q, []int{id})
	if err != nil {
		return types.ProblemDetail{}, err
	}
	p.Tags = tags[id]
	if p.Tags == nil {
		p.Tags = []types.Tag{}
	}

	p.Examples, err = r.examples(ctx, q, id)
	if err != nil {
		return types.ProblemDetail{}, err
	}
	return p, nil
}

// Exists returns ErrNotFound when no problem with the given id passes the
// filter.
func (r *ProblemRepository) Exists(ctx context.Context, id int, filter ProblemFilter) error {
	inner, args, err := filter.apply(r.builder.Select("1").From("problems").Where(sq.Eq{"id": id})).ToSql()
	if err != nil {
		return err
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx, "SELECT EXISTS ("+inner+")", args...).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// Create inserts the problem, links the existing tags among input.TagIDs
// and creates the examples, all in one transaction.
func (r *ProblemRepository) Create(ctx context.Context, input types.ProblemCreateInput, setterID int) (types.ProblemDetail, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.ProblemDetail{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	sqlStr, args, err := r.builder.
		Insert("problems").
		Columns("title", "description", "input_description", "output_description",
			"analysis", "difficulty", "is_public", "setter_id").
		Values(input.Title, input.Description, input.InputDescription, input.OutputDescription,
			input.Analysis, input.Difficulty, input.IsPublic, nullInt(setterID)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return types.ProblemDetail{}, err
	}
	var id int
	if err := tx.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return types.ProblemDetail{}, fmt.Errorf("insert problem: %w", err)
	}

	if len(input.TagIDs) > 0 {
		const linkTags = `
			INSERT INTO problem_tags (problem_id, tag_id)
			SELECT $1, id FROM tags WHERE id = ANY($2)
			ON CONFLICT DO NOTHING`
		if _, err := tx.ExecContext(ctx, linkTags, id, pq.Array(input.TagIDs)); err != nil {
			return types.ProblemDetail{}, fmt.Errorf("link tags: %w", err)
		}
	}

	if len(input.Examples) > 0 {
		insert := r.builder.Insert("examples").Columns("problem_id", "input_data", "output_data")
		for _, ex := range input.Examples {
			insert = insert.Values(id, ex.InputData, ex.OutputData)
		}
		sqlStr, args, err := insert.ToSql()
		if err != nil {
			return types.ProblemDetail{}, err
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return types.ProblemDetail{}, fmt.Errorf("insert examples: %w", err)
		}
	}

	created, err := r.get(ctx, tx, id, ProblemFilter{All: true})
	if err != nil {
		return types.ProblemDetail{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.ProblemDetail{}, err
	}
	return created, nil
}

// ListTags returns every tag ordered by id.
func (r *ProblemRepository) ListTags(ctx context.Context) ([]types.Tag, error) {
	sqlStr, args, err := r.builder.Select("id", "name").From("tags").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := make([]types.Tag, 0)
	for rows.Next() {
		var t types.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (r *ProblemRepository) tagsByProblem(ctx context.Context, q queryer, problemIDs []int) (map[int][]types.Tag, error) {
	result := make(map[int][]types.Tag, len(problemIDs))
	if len(problemIDs) == 0 {
		return result, nil
	}

	sqlStr, args, err := r.builder.
		Select("pt.problem_id", "t.id", "t.name").
		From("problem_tags pt").
		Join("tags t ON t.id = pt.tag_id").
		Where(sq.Eq{"pt.problem_id": problemIDs}).
		OrderBy("pt.problem_id", "t.id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var problemID int
		var t types.Tag
		if err := rows.Scan(&problemID, &t.ID, &t.Name); err != nil {
			return nil, err
		}
		result[problemID] = append(result[problemID], t)
	}
	return result, rows.Err()
}

func (r *ProblemRepository) examples(ctx context.Context, q queryer, problemID int) ([]types.Example, error) {
	sqlStr, args, err := r.builder.
		Select("id", "input_data", "output_data").
		From("examples").
		Where(sq.Eq{"problem_id": problemID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	examples := make([]types.Example, 0)
	for rows.Next() {
		var ex types.Example
		var id int
		if err := rows.Scan(&id, &ex.InputData, &ex.OutputData); err != nil {
			return nil, err
		}
		ex.ID = &id
		examples = append(examples, ex)
	}
	return examples, rows.Err()
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v > 0}
}
