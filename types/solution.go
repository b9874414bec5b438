package types

import "time"

// TestCase is a judge test case attached to a problem. The input is stored
// as a file in object storage and referenced by URL.
type TestCase struct {
	// ID is the unique identifier of the test case.
	ID int `json:"id" db:"id"`

	// ProblemID identifies the problem this test case belongs to.
	ProblemID int `json:"-" db:"problem_id"`

	// DataType describes how the input is encoded (e.g. "text", "file").
	DataType string `json:"data_type" db:"data_type"`

	// Weight is the share of the total score carried by this test case.
	Weight float64 `json:"weight" db:"weight"`

	// ExpectedOutput is the output a correct solution must produce.
	ExpectedOutput string `json:"expected_output" db:"expected_output"`

	// InputFile is the URL of the uploaded input file, when present.
	InputFile *string `json:"input_file,omitempty" db:"input_file"`

	// ObjectKey is the key of the input file in object storage.
	// It is never exposed in API responses.
	ObjectKey string `json:"-" db:"object_key"`

	// CreatedAt is the timestamp at which the test case was uploaded.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Solution is a reference solution or editorial code published for a
// problem by a user.
type Solution struct {
	// ID is the unique identifier of the solution.
	ID int `json:"id" db:"id"`

	// ProblemID identifies the problem this solution is for.
	ProblemID int `json:"-" db:"problem_id"`

	// UserID identifies the author of the solution.
	UserID int `json:"-" db:"user_id"`

	// Language is the identifier of the programming language used.
	Language string `json:"language" db:"language"`

	// Code is the source code of the solution.
	Code string `json:"code" db:"code"`

	// Description is an optional explanation of the approach.
	Description *string `json:"description,omitempty" db:"description"`

	// UserName is the author's username, resolved by the server.
	UserName string `json:"user_name" db:"user_name"`

	// CreatedAt is the timestamp at which the solution was published.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SolutionInput is the payload used to publish a solution.
type SolutionInput struct {
	Language    string  `json:"language" validate:"required,max=32"`
	Code        string  `json:"code" validate:"required"`
	Description *string `json:"description,omitempty"`
}
