package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/pipeline"
)

// Runner runs one verification. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, query string) (*pipeline.Result, error)
}

// QueryJob verifies a single question from a batch
type QueryJob struct {
	Index  int
	Query  string
	Runner Runner
}

// Execute runs the query through the pipeline
func (j *QueryJob) Execute(ctx context.Context) Result {
	result, err := j.Runner.Run(ctx, j.Query)
	return &QueryResult{
		Index:  j.Index,
		Query:  j.Query,
		Result: result,
		Error:  err,
	}
}

// QueryResult is the outcome of one batch query
type QueryResult struct {
	Index  int
	Query  string
	Result *pipeline.Result // nil on error
	Error  error
}

// GetError returns the error from the query result
func (r *QueryResult) GetError() error {
	return r.Error
}

// BatchProcessor verifies several questions concurrently
type BatchProcessor struct {
	runner      Runner
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(runner Runner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
	}
}

// ProcessQueries runs every query and returns results in input order.
// Queries that could not be submitted before ctx ended carry ctx's error.
func (b *BatchProcessor) ProcessQueries(ctx context.Context, queries []string) []*QueryResult {
	if len(queries) == 0 {
		return []*QueryResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	out := make([]*QueryResult, len(queries))
	for i, q := range queries {
		job := &QueryJob{Index: i, Query: q, Runner: b.runner}
		if err := pool.Submit(job); err != nil {
			out[i] = &QueryResult{Index: i, Query: q, Error: err}
		}
	}

	for _, r := range pool.Wait() {
		qr := r.(*QueryResult)
		out[qr.Index] = qr
	}

	// Jobs dropped by a cancelled pool never report back
	for i, r := range out {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &QueryResult{Index: i, Query: queries[i], Error: err}
		}
	}

	return out
}

// ProcessFile reads questions from a file and verifies them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*QueryResult, error) {
	queries, err := ReadQueriesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}

	return b.ProcessQueries(ctx, queries), nil
}

// ReadQueriesFromFile reads one question per line. Blank lines and lines
// starting with # are skipped; repeated questions are kept once.
func ReadQueriesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var queries []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			queries = append(queries, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return queries, nil
}
