package solver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/polynomial"
)

func testPolynomial(t *testing.T) polynomial.Polynomial {
	t.Helper()
	b := polynomial.NewBuilder(2)
	require.NoError(t, b.Add([]int{1}, -1.0))
	require.NoError(t, b.Add([]int{1, 2}, 2.0))
	return b.Export(2)
}

// diracStub fakes the remote service: one file upload, one job creation,
// then a fixed sequence of poll statuses.
type diracStub struct {
	t            *testing.T
	pollStatuses []string
	pollCount    int
	finalResults map[string]interface{}
	uploadedFile map[string]interface{}
	jobRequest   map[string]interface{}
}

func (d *diracStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/optimization/v1/files", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(d.t, http.MethodPost, r.Method)
		require.NoError(d.t, json.NewDecoder(r.Body).Decode(&d.uploadedFile))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"file_id": "file-123"})
	})
	mux.HandleFunc("/optimization/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(d.t, http.MethodPost, r.Method)
		require.NoError(d.t, json.NewDecoder(r.Body).Decode(&d.jobRequest))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"job_id": "job-456", "status": "QUEUED"})
	})
	mux.HandleFunc("/optimization/v1/jobs/", func(w http.ResponseWriter, r *http.Request) {
		require.True(d.t, strings.HasSuffix(r.URL.Path, "/job-456"))
		w.Header().Set("Content-Type", "application/json")
		status := d.pollStatuses[len(d.pollStatuses)-1]
		if d.pollCount < len(d.pollStatuses) {
			status = d.pollStatuses[d.pollCount]
		}
		d.pollCount++

		resp := map[string]interface{}{"job_id": "job-456", "status": status}
		if status == "COMPLETED" {
			resp["results"] = d.finalResults
		}
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func TestDiracClient_SubmitHappyPath(t *testing.T) {
	stub := &diracStub{
		t:            t,
		pollStatuses: []string{"RUNNING", "COMPLETED"},
		finalResults: map[string]interface{}{
			"energies":  []float64{-1.0, 1.0},
			"solutions": [][]float64{{1, 0}, {1, 1}},
			"counts":    []int{7, 3},
		},
	}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	client := NewDiracClient(server.URL, "test-token", "dirac-3", 5*time.Millisecond)
	samples, err := client.Submit(context.Background(), testPolynomial(t), 10, 1)
	require.NoError(t, err)

	require.Len(t, samples, 2)
	assert.Equal(t, []int{1, 0}, samples[0].Values)
	assert.Equal(t, -1.0, samples[0].Energy)
	assert.Equal(t, 7, samples[0].Count)
	assert.Equal(t, []int{1, 1}, samples[1].Values)
	assert.Equal(t, 3, samples[1].Count)

	// The job declares binary variables through a uniform two-level domain.
	params := stub.jobRequest["job_params"].(map[string]interface{})
	assert.Equal(t, []interface{}{2.0}, params["num_levels"].([]interface{}))
	assert.Equal(t, "sample-hamiltonian-integer", stub.jobRequest["job_type"])
	assert.Equal(t, "file-123", stub.jobRequest["polynomial_file_id"])

	// The uploaded file embeds the exported polynomial untouched.
	fileConfig := stub.uploadedFile["file_config"].(map[string]interface{})
	poly := fileConfig["polynomial"].(map[string]interface{})
	assert.Equal(t, 2.0, poly["num_variables"])
}

func TestDiracClient_ErroredJob(t *testing.T) {
	stub := &diracStub{
		t:            t,
		pollStatuses: []string{"RUNNING", "ERRORED"},
	}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	client := NewDiracClient(server.URL, "test-token", "dirac-3", 5*time.Millisecond)
	_, err := client.Submit(context.Background(), testPolynomial(t), 10, 1)
	assert.ErrorIs(t, err, ErrSolverFailure)
}

func TestDiracClient_CancelledJob(t *testing.T) {
	stub := &diracStub{
		t:            t,
		pollStatuses: []string{"CANCELLED"},
	}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	client := NewDiracClient(server.URL, "test-token", "dirac-3", 5*time.Millisecond)
	_, err := client.Submit(context.Background(), testPolynomial(t), 10, 1)
	assert.ErrorIs(t, err, ErrSolverFailure)
}

func TestDiracClient_CompletedWithoutResults(t *testing.T) {
	stub := &diracStub{
		t:            t,
		pollStatuses: []string{"COMPLETED"},
		finalResults: map[string]interface{}{},
	}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	client := NewDiracClient(server.URL, "test-token", "dirac-3", 5*time.Millisecond)
	_, err := client.Submit(context.Background(), testPolynomial(t), 10, 1)
	assert.ErrorIs(t, err, ErrSolverFailure)
}

func TestDiracClient_MisalignedSolutionLength(t *testing.T) {
	stub := &diracStub{
		t:            t,
		pollStatuses: []string{"COMPLETED"},
		finalResults: map[string]interface{}{
			"energies":  []float64{-1.0},
			"solutions": [][]float64{{1, 0, 0}},
		},
	}
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	client := NewDiracClient(server.URL, "test-token", "dirac-3", 5*time.Millisecond)
	_, err := client.Submit(context.Background(), testPolynomial(t), 10, 1)
	assert.ErrorIs(t, err, ErrSolverFailure)
}
