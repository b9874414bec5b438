package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/zqadmin/ojadmin/internal/services"
	"github.com/zqadmin/ojadmin/pkg/logger"
	"github.com/zqadmin/ojadmin/types"
)

const (
	maxMultipartMemory = 32 << 20
	maxInputFileBytes  = 256 << 20

	formFieldDataType       = "data_type"
	formFieldWeight         = "weight"
	formFieldExpectedOutput = "expected_output"
	formFieldInputFile      = "input_file"
)

// ProblemHandler provides HTTP handlers for problems, their test cases and
// solutions.
type ProblemHandler struct {
	problems  *services.ProblemService
	testCases *services.TestCaseService
	solutions *services.SolutionService
	log       logger.Logger
}

// NewProblemHandler constructs a handler with the provided services.
func NewProblemHandler(
	problems *services.ProblemService,
	testCases *services.TestCaseService,
	solutions *services.SolutionService,
	log logger.Logger,
) *ProblemHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ProblemHandler{
		problems:  problems,
		testCases: testCases,
		solutions: solutions,
		log:       log.Named("problems"),
	}
}

// ProblemRouter registers problem routes on the given router. Every route
// requires an authenticated user; authMiddleware must put that user in the
// request context (RequireAuth followed by LoadUser).
func ProblemRouter(r chi.Router, h *ProblemHandler, authMiddleware ...func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware...)

		r.Get("/", h.ListProblems)
		r.Post("/", h.CreateProblem)
		// Registered before /{problemID} so "tags" is never parsed as an id.
		r.Get("/tags/all", h.ListTags)
		r.Route("/{problemID}", func(r chi.Router) {
			r.Get("/", h.GetProblem)
			r.Post("/testcases", h.UploadTestCase)
			r.Post("/solutions", h.CreateSolution)
		})
	})
}

func (h *ProblemHandler) ListProblems(w http.ResponseWriter, r *http.Request) {
	viewer, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.problems.List(r.Context(), viewer)
	if err != nil {
		writeServiceError(w, r, h.log, err, "problem not found", "failed to list problems")
		return
	}
	if items == nil {
		items = []types.ProblemListItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ProblemHandler) GetProblem(w http.ResponseWriter, r *http.Request) {
	id, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	viewer, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	problem, err := h.problems.Get(r.Context(), id, viewer)
	if err != nil {
		writeServiceError(w, r, h.log, err, "problem not found", "failed to fetch problem")
		return
	}
	writeJSON(w, http.StatusOK, problem)
}

func (h *ProblemHandler) CreateProblem(w http.ResponseWriter, r *http.Request) {
	setter, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	input := types.NewProblemCreateInput()
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.problems.Create(r.Context(), input, setter)
	if err != nil {
		writeServiceError(w, r, h.log, err, "problem not found", "failed to create problem")
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (h *ProblemHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.problems.ListTags(r.Context())
	if err != nil {
		writeServiceError(w, r, h.log, err, "tag not found", "failed to list tags")
		return
	}
	if tags == nil {
		tags = []types.Tag{}
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *ProblemHandler) UploadTestCase(w http.ResponseWriter, r *http.Request) {
	id, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	uploader, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxInputFileBytes+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	upload, file, err := parseTestCaseForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if file != nil {
		defer file.Close()
	}

	tc, err := h.testCases.Upload(r.Context(), id, upload, uploader)
	if err != nil {
		writeServiceError(w, r, h.log, err, "problem not found", "failed to upload test case")
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

func (h *ProblemHandler) CreateSolution(w http.ResponseWriter, r *http.Request) {
	id, err := parseProblemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	author, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input types.SolutionInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	solution, err := h.solutions.Create(r.Context(), id, input, author)
	if err != nil {
		writeServiceError(w, r, h.log, err, "problem not found", "failed to create solution")
		return
	}
	writeJSON(w, http.StatusOK, solution)
}

// parseTestCaseForm reads the test case fields of a parsed multipart form.
// The returned file, when not nil, must be closed by the caller.
func parseTestCaseForm(r *http.Request) (services.TestCaseUpload, multipart.File, error) {
	upload := services.TestCaseUpload{
		DataType:       strings.TrimSpace(r.FormValue(formFieldDataType)),
		ExpectedOutput: r.FormValue(formFieldExpectedOutput),
	}

	if raw := strings.TrimSpace(r.FormValue(formFieldWeight)); raw != "" {
		weight, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return services.TestCaseUpload{}, nil, errors.New("invalid weight")
		}
		upload.Weight = weight
	}

	files := r.MultipartForm.File[formFieldInputFile]
	if len(files) == 0 {
		return upload, nil, nil
	}
	if len(files) > 1 {
		return services.TestCaseUpload{}, nil, errors.New("only one input file is allowed")
	}

	header := files[0]
	if header.Size > maxInputFileBytes {
		return services.TestCaseUpload{}, nil, errors.New("uploaded file too large")
	}
	file, err := header.Open()
	if err != nil {
		return services.TestCaseUpload{}, nil, errors.New("failed to read input file")
	}

	upload.FileName = header.Filename
	upload.File = file
	upload.Size = header.Size
	upload.ContentType = header.Header.Get("Content-Type")
	return upload, file, nil
}
