package types

import "time"

// Default values applied by the server when a create payload omits them.
const (
	DefaultDifficulty = 3
	DefaultIsPublic   = true
)

// Tag is a free-form label attached to problems, used for categorization
// and in selection widgets.
type Tag struct {
	// ID is the unique identifier of the tag.
	ID int `json:"id" db:"id"`

	// Name is the human-readable label of the tag.
	Name string `json:"name" db:"name"`
}

// Example is a sample input/output pair shown in the problem statement.
type Example struct {
	// ID is the identifier of the example. It is nil for examples that
	// have not been persisted yet, e.g. inside a create payload.
	ID *int `json:"id,omitempty" db:"id"`

	// InputData is the sample input fed to the program. It may be empty.
	InputData string `json:"input_data" db:"input_data"`

	// OutputData is the expected output for InputData. It may be empty.
	OutputData string `json:"output_data" db:"output_data"`
}

// ProblemListItem is the list view projection of a problem.
type ProblemListItem struct {
	// ID is the unique identifier of the problem.
	ID int `json:"id" db:"id"`

	// Title is the human-readable name of the problem.
	Title string `json:"title" db:"title"`

	// Difficulty indicates the relative difficulty level of the problem.
	Difficulty int `json:"difficulty" db:"difficulty"`

	// IsPublic reports whether the problem is visible to every user.
	// Private problems are only listed for their setter and for admins.
	IsPublic bool `json:"is_public" db:"is_public"`

	// Tags are the labels attached to the problem, ordered by id.
	Tags []Tag `json:"tags" db:"tags"`

	// CreatedAt is the timestamp at which the problem was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProblemDetail is the detail view projection of a problem. It extends
// ProblemListItem with the statement text and the sample examples.
type ProblemDetail struct {
	ProblemListItem

	// Description contains the full problem statement.
	Description string `json:"description" db:"description"`

	// InputDescription describes the input format.
	InputDescription *string `json:"input_description,omitempty" db:"input_description"`

	// OutputDescription describes the output format.
	OutputDescription *string `json:"output_description,omitempty" db:"output_description"`

	// Analysis is an optional editorial for the problem.
	Analysis *string `json:"analysis,omitempty" db:"analysis"`

	// Examples is the ordered list of sample input/output pairs.
	Examples []Example `json:"examples" db:"examples"`
}

// ProblemCreateInput is the payload used to create a problem together with
// its tag links and examples.
type ProblemCreateInput struct {
	Title             string    `json:"title" validate:"required,max=255"`
	Description       string    `json:"description" validate:"required"`
	InputDescription  *string   `json:"input_description,omitempty"`
	OutputDescription *string   `json:"output_description,omitempty"`
	Analysis          *string   `json:"analysis,omitempty"`
	Difficulty        int       `json:"difficulty" validate:"gte=0"`
	IsPublic          bool      `json:"is_public"`
	TagIDs            []int     `json:"tag_ids" validate:"dive,gt=0"`
	Examples          []Example `json:"examples" validate:"dive"`
}

// StringPtr returns a pointer to s. It is a convenience for filling the
// optional text fields of ProblemCreateInput and SolutionInput.
func StringPtr(s string) *string {
	return &s
}

// NewProblemCreateInput returns an input holding the server defaults.
// Decoding a JSON payload into it keeps the defaults for omitted fields.
func NewProblemCreateInput() ProblemCreateInput {
	return ProblemCreateInput{
		Difficulty: DefaultDifficulty,
		IsPublic:   DefaultIsPublic,
	}
}
