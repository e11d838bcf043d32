package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"job-ingest/internal/extraction"
	"job-ingest/internal/infrastructure/fetcher"
	"job-ingest/internal/infrastructure/llm"

	"github.com/spf13/cobra"
)

var (
	extractURL      string
	extractFile     string
	extractHeadless bool
	extractTimeout  time.Duration
	extractTextOnly bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the extraction chain on a page and print the result as JSON",
	Long: "Fetches --url (or reads --file) and runs selector, pattern and semantic extraction.\n" +
		"Semantic extraction is used when LLM_API_KEY is set.",
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractURL, "url", "", "job posting URL to fetch")
	extractCmd.Flags().StringVar(&extractFile, "file", "", "saved HTML file to read instead of fetching")
	extractCmd.Flags().BoolVar(&extractHeadless, "headless", false, "render the page with headless Chrome")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", fetcher.DefaultTimeout, "fetch timeout")
	extractCmd.Flags().BoolVar(&extractTextOnly, "text-only", false, "print the cleaned page text the semantic stage would see")
}

type extractOutput struct {
	Stages          []string `json:"stages"`
	Fallback        bool     `json:"fallback"`
	Title           *string  `json:"job_title"`
	Company         *string  `json:"company"`
	Location        *string  `json:"location"`
	Salary          *string  `json:"salary"`
	Description     *string  `json:"description"`
	JobType         *string  `json:"job_type"`
	ExperienceLevel *string  `json:"experience_level"`
	RemoteWork      bool     `json:"remote_work"`
	Benefits        []string `json:"benefits"`
	Requirements    []string `json:"requirements"`
	Skills          []string `json:"skills"`
}

func runExtract(cmd *cobra.Command, _ []string) error {
	if (extractURL == "") == (extractFile == "") {
		return errors.New("exactly one of --url or --file is required")
	}
	logger := newLogger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var html string
	if extractFile != "" {
		b, err := os.ReadFile(extractFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", extractFile, err)
		}
		html = string(b)
	} else {
		var f fetcher.Fetcher = fetcher.NewCollyFetcher(extractTimeout, fetcher.DefaultMaxBodySize, logger)
		if extractHeadless {
			f = fetcher.NewHeadlessFetcher(extractTimeout, logger)
		}
		fetchCtx, cancel := context.WithTimeout(ctx, extractTimeout)
		defer cancel()
		body, err := f.Fetch(fetchCtx, extractURL)
		if err != nil {
			return err
		}
		html = body
	}

	if extractTextOnly {
		text, err := extraction.CleanText(html, extraction.DefaultSemanticMaxChars)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
		return err
	}

	coord := extraction.NewDefaultCoordinator(providerFromEnv(), extraction.Config{}, logger)
	res, err := coord.Coordinate(ctx, extraction.Source{HTML: html, URL: extractURL})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(newExtractOutput(res))
}

func newExtractOutput(res extraction.Result) extractOutput {
	j := res.Job
	return extractOutput{
		Stages:          res.Stages,
		Fallback:        res.Fallback,
		Title:           j.Title,
		Company:         j.Company,
		Location:        j.Location,
		Salary:          j.Salary,
		Description:     j.Description,
		JobType:         j.JobType,
		ExperienceLevel: j.ExperienceLevel,
		RemoteWork:      j.RemoteWork,
		Benefits:        orEmpty(j.Benefits),
		Requirements:    orEmpty(j.Requirements),
		Skills:          orEmpty(j.Skills),
	}
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func providerFromEnv() llm.Provider {
	key := strings.TrimSpace(os.Getenv("LLM_API_KEY"))
	if key == "" {
		return nil
	}
	return llm.NewOpenAIProvider(os.Getenv("LLM_BASE_URL"), key, os.Getenv("LLM_MODEL"), &http.Client{Timeout: 40 * time.Second})
}
