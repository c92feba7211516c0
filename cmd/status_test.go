package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/rosenopt/internal/server"
)

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(server.NewServer("", nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestStatus_ListJobsEmpty(t *testing.T) {
	srv := startTestServer(t)

	var out bytes.Buffer
	if err := listJobs(&out, srv.URL+"/api/v1/jobs"); err != nil {
		t.Fatalf("listJobs failed: %v", err)
	}
	if !strings.Contains(out.String(), "No jobs found") {
		t.Errorf("Unexpected output: %q", out.String())
	}
}

func TestStatus_JobLifecycle(t *testing.T) {
	srv := startTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/jobs", "application/json",
		strings.NewReader(`{"strategy": "newton", "initialPoint": [-1.2, 1]}`))
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	var job struct {
		ID string `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&job)
	resp.Body.Close()

	statusURL := srv.URL + "/api/v1/jobs/" + job.ID + "/status"
	var out bytes.Buffer
	for i := 0; i < 50; i++ {
		out.Reset()
		if err := getJobStatus(&out, statusURL, job.ID); err != nil {
			t.Fatalf("getJobStatus failed: %v", err)
		}
		if strings.Contains(out.String(), "State: completed") {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	text := out.String()
	for _, want := range []string{"State: completed", "Outcome: converged", "Strategy: newton", "Dimension: 2"} {
		if !strings.Contains(text, want) {
			t.Errorf("Status output missing %q:\n%s", want, text)
		}
	}

	out.Reset()
	if err := listJobs(&out, srv.URL+"/api/v1/jobs"); err != nil {
		t.Fatalf("listJobs failed: %v", err)
	}
	if !strings.Contains(out.String(), job.ID) {
		t.Errorf("Job missing from list:\n%s", out.String())
	}
}

func TestStatus_JobNotFound(t *testing.T) {
	srv := startTestServer(t)

	var out bytes.Buffer
	err := getJobStatus(&out, srv.URL+"/api/v1/jobs/missing/status", "missing")
	if err == nil || !strings.Contains(err.Error(), "job not found") {
		t.Errorf("Expected job not found error, got %v", err)
	}
}
