/*

This file contains the HTTP client for the remote Dirac solver service.

The submission flow mirrors the service's job lifecycle: upload the
polynomial as a file, create a sample-hamiltonian job referencing it with
binary variable domains, then poll until the job reaches a terminal status.
The API token is never logged.

*/

package solver

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/logger"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/polynomial"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

var diracLogger = logger.GetForComponent("dirac_client")

// Remote job lifecycle statuses.
const (
	statusCompleted = "COMPLETED"
	statusErrored   = "ERRORED"
	statusCancelled = "CANCELLED"
)

const (
	filesEndpoint = "/optimization/v1/files"
	jobsEndpoint  = "/optimization/v1/jobs"
)

// DiracClient submits polynomial minimization jobs to the remote service.
type DiracClient struct {
	http         *resty.Client
	deviceType   string
	pollInterval time.Duration
}

// NewDiracClient builds a client for the given service URL and token.
func NewDiracClient(baseURL, apiToken, deviceType string, pollInterval time.Duration) *DiracClient {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second)

	return &DiracClient{
		http:         client,
		deviceType:   deviceType,
		pollInterval: pollInterval,
	}
}

type polynomialFile struct {
	FileName   string `json:"file_name"`
	FileConfig struct {
		Polynomial polynomial.Polynomial `json:"polynomial"`
	} `json:"file_config"`
}

type fileResponse struct {
	FileID string `json:"file_id"`
}

type jobRequest struct {
	JobType          string    `json:"job_type"`
	JobName          string    `json:"job_name"`
	JobTags          []string  `json:"job_tags,omitempty"`
	JobParams        jobParams `json:"job_params"`
	PolynomialFileID string    `json:"polynomial_file_id"`
}

type jobParams struct {
	DeviceType         string `json:"device_type"`
	NumSamples         int    `json:"num_samples"`
	RelaxationSchedule int    `json:"relaxation_schedule"`
	// A single entry applies the same level count to every variable;
	// two levels declares all variables binary.
	NumLevels []int `json:"num_levels"`
}

type jobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Results struct {
		Energies  []float64   `json:"energies"`
		Solutions [][]float64 `json:"solutions"`
		Counts    []int       `json:"counts,omitempty"`
	} `json:"results"`
}

// Submit uploads the polynomial, starts a binary sampling job, and polls
// until the job terminates. Any terminal state other than completed is a
// hard failure for the request; the job is never retried here.
func (c *DiracClient) Submit(ctx context.Context, poly polynomial.Polynomial, numSamples, relaxationSchedule int) ([]types.SolutionSample, error) {
	file := polynomialFile{
		FileName: fmt.Sprintf("hedged_yield_allocator_%s", time.Now().UTC().Format("20060102_150405")),
	}
	file.FileConfig.Polynomial = poly

	var fileResp fileResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(file).
		SetResult(&fileResp).
		Post(filesEndpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: polynomial upload: %w", ErrSolverFailure, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: polynomial upload returned %s: %s", ErrSolverFailure, resp.Status(), resp.String())
	}
	if fileResp.FileID == "" {
		return nil, fmt.Errorf("%w: polynomial upload returned no file_id", ErrSolverFailure)
	}

	job := jobRequest{
		JobType: "sample-hamiltonian-integer",
		JobName: file.FileName,
		JobTags: []string{"hedged-yield", "allocator"},
		JobParams: jobParams{
			DeviceType:         c.deviceType,
			NumSamples:         numSamples,
			RelaxationSchedule: relaxationSchedule,
			NumLevels:          []int{2},
		},
		PolynomialFileID: fileResp.FileID,
	}

	var jobResp jobResponse
	resp, err = c.http.R().
		SetContext(ctx).
		SetBody(job).
		SetResult(&jobResp).
		Post(jobsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: job submission: %w", ErrSolverFailure, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: job submission returned %s: %s", ErrSolverFailure, resp.Status(), resp.String())
	}

	diracLogger.Info().
		Str("jobID", jobResp.JobID).
		Str("device", c.deviceType).
		Int("numVariables", poly.NumVariables).
		Int("terms", len(poly.Terms)).
		Msg("Solver job submitted")

	final, err := c.awaitJob(ctx, jobResp)
	if err != nil {
		return nil, err
	}

	return decodeSamples(final, poly.NumVariables)
}

// awaitJob polls the job until it reaches a terminal status or the caller's
// context expires. Context expiry surfaces through ErrSolverFailure so the
// caller sees one failure taxonomy.
func (c *DiracClient) awaitJob(ctx context.Context, job jobResponse) (jobResponse, error) {
	current := job
	for {
		switch current.Status {
		case statusCompleted:
			return current, nil
		case statusErrored, statusCancelled:
			return jobResponse{}, fmt.Errorf("%w: job %s ended with status %s: %s", ErrSolverFailure, current.JobID, current.Status, current.Message)
		}

		select {
		case <-ctx.Done():
			return jobResponse{}, fmt.Errorf("%w: awaiting job %s: %w", ErrSolverFailure, current.JobID, ctx.Err())
		case <-time.After(c.pollInterval):
		}

		var polled jobResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetResult(&polled).
			Get(jobsEndpoint + "/" + current.JobID)
		if err != nil {
			return jobResponse{}, fmt.Errorf("%w: polling job %s: %w", ErrSolverFailure, current.JobID, err)
		}
		if resp.IsError() {
			return jobResponse{}, fmt.Errorf("%w: polling job %s returned %s", ErrSolverFailure, current.JobID, resp.Status())
		}
		if polled.JobID == "" {
			polled.JobID = current.JobID
		}
		current = polled
	}
}

// decodeSamples converts the remote result arrays into solution samples.
// The integer job type reports values as floats; they are rounded to ints.
func decodeSamples(job jobResponse, numVariables int) ([]types.SolutionSample, error) {
	results := job.Results
	if len(results.Energies) == 0 || len(results.Solutions) == 0 {
		return nil, fmt.Errorf("%w: completed job %s carried no results", ErrSolverFailure, job.JobID)
	}
	if len(results.Energies) != len(results.Solutions) {
		return nil, fmt.Errorf("%w: job %s results misaligned: %d energies vs %d solutions",
			ErrSolverFailure, job.JobID, len(results.Energies), len(results.Solutions))
	}

	samples := make([]types.SolutionSample, len(results.Energies))
	for i := range results.Energies {
		if len(results.Solutions[i]) != numVariables {
			return nil, fmt.Errorf("%w: job %s solution %d has length %d, want %d",
				ErrSolverFailure, job.JobID, i, len(results.Solutions[i]), numVariables)
		}
		values := make([]int, numVariables)
		for j, v := range results.Solutions[i] {
			values[j] = int(math.Round(v))
		}
		count := 1
		if i < len(results.Counts) {
			count = results.Counts[i]
		}
		samples[i] = types.SolutionSample{Values: values, Energy: results.Energies[i], Count: count}
	}
	return samples, nil
}
