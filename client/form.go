package client

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
)

// Multipart field names understood by the test case upload endpoint.
const (
	FieldDataType       = "data_type"
	FieldWeight         = "weight"
	FieldExpectedOutput = "expected_output"
	FieldInputFile      = "input_file"
)

// FormData is a multipart request body together with its content type,
// which carries the boundary.
type FormData struct {
	body        io.Reader
	contentType string
}

// NewFormData wraps an already encoded multipart body.
func NewFormData(body io.Reader, contentType string) *FormData {
	return &FormData{body: body, contentType: contentType}
}

// Body returns the encoded payload.
func (f *FormData) Body() io.Reader { return f.body }

// ContentType returns the multipart/form-data content type with boundary.
func (f *FormData) ContentType() string { return f.contentType }

// TestCaseUpload describes the fields of a test case upload.
type TestCaseUpload struct {
	DataType       string
	Weight         float64
	ExpectedOutput string
	FileName       string
	File           io.Reader
}

// NewTestCaseForm encodes a TestCaseUpload as a multipart payload.
// File is optional.
func NewTestCaseForm(u TestCaseUpload) (*FormData, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{FieldDataType, u.DataType},
		{FieldWeight, strconv.FormatFloat(u.Weight, 'f', -1, 64)},
		{FieldExpectedOutput, u.ExpectedOutput},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("write field %s: %w", f[0], err)
		}
	}

	if u.File != nil {
		if u.FileName == "" {
			return nil, errors.New("file name is required with a file")
		}
		part, err := w.CreateFormFile(FieldInputFile, u.FileName)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, u.File); err != nil {
			return nil, fmt.Errorf("write input file: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return NewFormData(&buf, w.FormDataContentType()), nil
}
