//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/zqadmin/ojadmin/client"
	"github.com/zqadmin/ojadmin/config"
	"github.com/zqadmin/ojadmin/internal/db"
	"github.com/zqadmin/ojadmin/internal/server"
	"github.com/zqadmin/ojadmin/internal/store"
	"github.com/zqadmin/ojadmin/pkg/logger"
	"github.com/zqadmin/ojadmin/types"
)

const (
	serverPort = 18080
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	cfg := testConfig()
	if err := waitForPostgres(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestProblemLifecycle(t *testing.T) {
	ctx := context.Background()
	setter := fmt.Sprintf("setter_%d", time.Now().UnixNano())
	viewer := setter + "_viewer"

	setterToken := registerUser(t, setter)
	viewerToken := registerUser(t, viewer)
	setterAPI := newAPI(t, setterToken)
	viewerAPI := newAPI(t, viewerToken)

	input := types.NewProblemCreateInput()
	input.Title = "A+B"
	input.Description = "Add two integers."
	input.IsPublic = false
	input.Examples = []types.Example{{InputData: "1 2", OutputData: "3"}}

	created, err := setterAPI.CreateProblem(ctx, input)
	if err != nil {
		t.Fatalf("create problem: %v", err)
	}
	if created.ID == 0 || created.Difficulty != types.DefaultDifficulty {
		t.Fatalf("unexpected created problem: %+v", created.ProblemListItem)
	}
	if len(created.Examples) != 1 || created.Examples[0].OutputData != "3" {
		t.Fatalf("examples not stored: %+v", created.Examples)
	}

	// Private problems are listed for their setter only.
	if !listContains(t, setterAPI, created.ID) {
		t.Fatalf("setter cannot see own private problem")
	}
	if listContains(t, viewerAPI, created.ID) {
		t.Fatalf("private problem leaked to another user")
	}

	if err := promote(ctx, viewer, types.RoleStaff); err != nil {
		t.Fatalf("promote viewer: %v", err)
	}
	if !listContains(t, viewerAPI, created.ID) {
		t.Fatalf("staff cannot see private problem")
	}

	detail, err := viewerAPI.GetProblemDetail(ctx, created.ID)
	if err != nil {
		t.Fatalf("get problem: %v", err)
	}
	if detail.Description != input.Description {
		t.Fatalf("unexpected description %q", detail.Description)
	}

	if _, err := setterAPI.GetTags(ctx); err != nil {
		t.Fatalf("get tags: %v", err)
	}

	form, err := client.NewTestCaseForm(client.TestCaseUpload{
		DataType:       "text",
		Weight:         1,
		ExpectedOutput: "3",
		FileName:       "1.in",
		File:           strings.NewReader("1 2\n"),
	})
	if err != nil {
		t.Fatalf("build form: %v", err)
	}
	tc, err := setterAPI.UploadTestCase(ctx, created.ID, form)
	if err != nil {
		t.Fatalf("upload test case: %v", err)
	}
	if tc.InputFile == nil || !strings.Contains(*tc.InputFile, fmt.Sprintf("testcases/%d/", created.ID)) {
		t.Fatalf("unexpected input file: %v", tc.InputFile)
	}

	sol, err := setterAPI.CreateSolution(ctx, created.ID, types.SolutionInput{Language: "go", Code: "package main"})
	if err != nil {
		t.Fatalf("create solution: %v", err)
	}
	if sol.UserName != setter {
		t.Fatalf("unexpected solution author %q", sol.UserName)
	}

	_, err = setterAPI.GetProblemDetail(ctx, created.ID+100000)
	if !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = setterAPI.CreateSolution(ctx, created.ID+100000, types.SolutionInput{Language: "go", Code: "x"})
	if !errors.Is(err, client.ErrNotFound) {
		t.Fatalf("expected not found for solution, got %v", err)
	}
}

func TestConcurrentReads(t *testing.T) {
	ctx := context.Background()
	api := newAPI(t, registerUser(t, fmt.Sprintf("reader_%d", time.Now().UnixNano())))

	list := client.Go(ctx, api.GetProblemList)
	tags := client.Go(ctx, api.GetTags)

	if _, err := list.Await(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := tags.Await(ctx); err != nil {
		t.Fatalf("tags: %v", err)
	}
}

func TestSolutionForUnknownAuthorLeavesNoRow(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, testConfig().Database)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	setter := registerUser(t, "solution-setter")
	created, err := newAPI(t, setter).CreateProblem(ctx, types.ProblemCreateInput{
		Title:       "Solutions",
		Description: "D",
		Difficulty:  1,
		IsPublic:    true,
	})
	if err != nil {
		t.Fatalf("create problem: %v", err)
	}

	_, err = store.NewSolutionRepository(conn).Create(ctx, types.Solution{
		ProblemID: created.ID,
		UserID:    999999,
		Language:  "go",
		Code:      "package main",
	})
	if err == nil {
		t.Fatalf("expected error for unknown author")
	}

	var count int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM solutions WHERE problem_id = $1`, created.ID).Scan(&count); err != nil {
		t.Fatalf("count solutions: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no solution rows, got %d", count)
	}
}

func newAPI(t *testing.T, token string) *client.ProblemAPI {
	t.Helper()
	req, err := client.NewRequestClient(baseURL,
		client.WithTimeout(10*time.Second),
		client.WithHeader("Authorization", "Bearer "+token),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client.NewProblemAPI(req)
}

func listContains(t *testing.T, api *client.ProblemAPI, id int) bool {
	t.Helper()
	items, err := api.GetProblemList(context.Background())
	if err != nil {
		t.Fatalf("list problems: %v", err)
	}
	for i, item := range items {
		if i > 0 && items[i-1].CreatedAt.Before(item.CreatedAt) {
			t.Fatalf("problems not ordered newest first")
		}
		if item.ID == id {
			return true
		}
	}
	return false
}

func registerUser(t *testing.T, username string) string {
	t.Helper()

	payload := map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"name":     "E2E " + username,
		"password": "testpass123!",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("encode register payload: %v", err)
	}

	resp, err := http.Post(baseURL+"/api/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("register failed: %s", strings.TrimSpace(string(data)))
	}

	var decoded struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil || decoded.Token == "" {
		t.Fatalf("decode register response: %v", err)
	}
	return decoded.Token
}

func promote(ctx context.Context, username, role string) error {
	conn, err := db.Open(ctx, testConfig().Database)
	if err != nil {
		return err
	}
	defer conn.Close()
	return store.NewUserRepository(conn).SetRole(ctx, username, role)
}

func testConfig() config.Config {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "ojadmin")
	_ = os.Setenv("DB_PASSWORD", "ojadmin")
	_ = os.Setenv("DB_NAME", "ojadmin")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("MINIO_ENDPOINT", "localhost:9000")
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "ojadmin")
	_ = os.Setenv("REDIS_ADDR", "localhost:6379")
	return config.LoadConfig()
}

func startServer(ctx context.Context, cfg config.Config) (*server.Server, error) {
	srv, err := server.New(ctx, cfg, logger.Nop())
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func waitForPostgres(ctx context.Context, cfg config.Config) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		conn, err := db.Open(ctx, cfg.Database)
		if err == nil {
			return conn.Close()
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	hc := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := hc.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string, cfg config.Config) error {
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
