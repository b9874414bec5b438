/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zqadmin/ojadmin/client"
	"github.com/zqadmin/ojadmin/types"
)

var apiURL string

// problemsCmd groups the API client commands.
var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "Talk to a running problem admin API",
	Long: `Calls the problem admin API at OJADMIN_API_URL (or --api) using the bearer
token in OJADMIN_TOKEN. Responses are printed as JSON.`,
}

var problemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible problems, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newProblemAPI()
		if err != nil {
			return err
		}
		items, err := api.GetProblemList(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), items)
	},
}

var problemsGetCmd = &cobra.Command{
	Use:   "get ID [ID...]",
	Short: "Show problem details; several ids are fetched concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		api, err := newProblemAPI()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		futures := make([]*client.Future[types.ProblemDetail], len(ids))
		for i, id := range ids {
			futures[i] = client.Go(ctx, func(ctx context.Context) (types.ProblemDetail, error) {
				return api.GetProblemDetail(ctx, id)
			})
		}

		details := make([]types.ProblemDetail, 0, len(ids))
		var errs []error
		for i, f := range futures {
			d, err := f.Await(ctx)
			if err != nil {
				if errors.Is(err, client.ErrNotFound) {
					err = fmt.Errorf("problem %d not found", ids[i])
				}
				errs = append(errs, err)
				continue
			}
			details = append(details, d)
		}
		if len(ids) == 1 && len(details) == 1 {
			if err := printJSON(cmd.OutOrStdout(), details[0]); err != nil {
				return err
			}
		} else if len(details) > 0 {
			if err := printJSON(cmd.OutOrStdout(), details); err != nil {
				return err
			}
		}
		return errors.Join(errs...)
	},
}

var problemsTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List all tags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newProblemAPI()
		if err != nil {
			return err
		}
		tags, err := api.GetTags(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), tags)
	},
}

var problemsCreateCmd = &cobra.Command{
	Use:   "create FILE",
	Short: "Create a problem from a JSON file (- reads stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		input := types.NewProblemCreateInput()
		if err := json.Unmarshal(data, &input); err != nil {
			return fmt.Errorf("decode %s: %w", args[0], err)
		}

		api, err := newProblemAPI()
		if err != nil {
			return err
		}
		created, err := api.CreateProblem(cmd.Context(), input)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), created)
	},
}

var problemsUploadCmd = &cobra.Command{
	Use:   "upload PROBLEM_ID",
	Short: "Upload a test case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		dataType, _ := flags.GetString("data-type")
		weight, _ := flags.GetFloat64("weight")
		expected, _ := flags.GetString("expected")
		inputPath, _ := flags.GetString("input")

		upload := client.TestCaseUpload{
			DataType:       dataType,
			Weight:         weight,
			ExpectedOutput: expected,
		}
		if inputPath != "" {
			f, err := os.Open(inputPath)
			if err != nil {
				return err
			}
			defer f.Close()
			upload.File = f
			upload.FileName = filepath.Base(inputPath)
		}

		form, err := client.NewTestCaseForm(upload)
		if err != nil {
			return err
		}
		api, err := newProblemAPI()
		if err != nil {
			return err
		}
		tc, err := api.UploadTestCase(cmd.Context(), ids[0], form)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), tc)
	},
}

var problemsSolutionCmd = &cobra.Command{
	Use:   "solution PROBLEM_ID CODE_FILE",
	Short: "Publish a solution (- reads the code from stdin)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args[:1])
		if err != nil {
			return err
		}
		code, err := readInput(cmd, args[1])
		if err != nil {
			return err
		}
		language, _ := cmd.Flags().GetString("language")
		description, _ := cmd.Flags().GetString("description")

		input := types.SolutionInput{Language: language, Code: string(code)}
		if description != "" {
			input.Description = types.StringPtr(description)
		}

		api, err := newProblemAPI()
		if err != nil {
			return err
		}
		sol, err := api.CreateSolution(cmd.Context(), ids[0], input)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sol)
	},
}

func init() {
	rootCmd.AddCommand(problemsCmd)
	problemsCmd.AddCommand(
		problemsListCmd,
		problemsGetCmd,
		problemsTagsCmd,
		problemsCreateCmd,
		problemsUploadCmd,
		problemsSolutionCmd,
	)
	problemsCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (overrides OJADMIN_API_URL)")

	problemsUploadCmd.Flags().String("data-type", "text", "input encoding of the test case")
	problemsUploadCmd.Flags().Float64("weight", 1, "score weight of the test case")
	problemsUploadCmd.Flags().String("expected", "", "expected output")
	problemsUploadCmd.Flags().String("input", "", "path of the input file to upload")

	problemsSolutionCmd.Flags().String("language", "", "language of the solution")
	problemsSolutionCmd.Flags().String("description", "", "short description of the approach")
	_ = problemsSolutionCmd.MarkFlagRequired("language")
}

func newProblemAPI() (*client.ProblemAPI, error) {
	base := cfg.Client.BaseURL
	if apiURL != "" {
		base = apiURL
	}
	opts := []client.Option{client.WithTimeout(cfg.Client.Timeout)}
	if token := strings.TrimSpace(cfg.Client.Token); token != "" {
		opts = append(opts, client.WithHeader("Authorization", "Bearer "+token))
	}
	req, err := client.NewRequestClient(base, opts...)
	if err != nil {
		return nil, err
	}
	return client.NewProblemAPI(req), nil
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id < 1 {
			return nil, fmt.Errorf("invalid problem id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
