package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

// jobStatus is the client view of the status endpoint.
type jobStatus struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Config struct {
		Strategy      string    `json:"strategy"`
		InitialPoint  []float64 `json:"initialPoint"`
		Tolerance     float64   `json:"tolerance"`
		MaxIterations int       `json:"maxIterations"`
	} `json:"config"`
	Outcome      string    `json:"outcome"`
	Point        []float64 `json:"point"`
	Value        float64   `json:"value"`
	GradNorm     float64   `json:"gradNorm"`
	InitialValue float64   `json:"initialValue"`
	Iterations   int       `json:"iterations"`
	Fallbacks    int       `json:"fallbacks"`
	Elapsed      float64   `json:"elapsed"`
	IPS          float64   `json:"ips"`
	Error        string    `json:"error"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		return listJobs(out, fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}

	jobID := args[0]
	return getJobStatus(out, fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

func listJobs(out io.Writer, url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var jobs []jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintf(out, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(out, "Job ID: %s\n", job.ID)
		fmt.Fprintf(out, "  State: %s\n", job.State)
		fmt.Fprintf(out, "  Strategy: %s\n", job.Config.Strategy)
		fmt.Fprintf(out, "  Dimension: %d\n", len(job.Config.InitialPoint))
		if job.Iterations > 0 {
			fmt.Fprintf(out, "  f(x): %.6g -> %.6g after %d iterations\n", job.InitialValue, job.Value, job.Iterations)
		}
		fmt.Fprintln(out)
	}

	return nil
}

func getJobStatus(out io.Writer, url, jobID string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Fprintf(out, "Job: %s\n", status.ID)
	fmt.Fprintf(out, "State: %s\n", status.State)
	if status.Outcome != "" {
		fmt.Fprintf(out, "Outcome: %s\n", status.Outcome)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Strategy: %s\n", status.Config.Strategy)
	fmt.Fprintf(out, "  Dimension: %d\n", len(status.Config.InitialPoint))
	fmt.Fprintf(out, "  Tolerance: %g\n", status.Config.Tolerance)
	fmt.Fprintf(out, "  Max iterations: %d\n", status.Config.MaxIterations)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Progress:")
	fmt.Fprintf(out, "  Iterations: %d\n", status.Iterations)
	fmt.Fprintf(out, "  Initial f(x): %.10g\n", status.InitialValue)
	fmt.Fprintf(out, "  Current f(x): %.10g\n", status.Value)
	fmt.Fprintf(out, "  Gradient norm: %.10g\n", status.GradNorm)
	if status.Fallbacks > 0 {
		fmt.Fprintf(out, "  Newton fallbacks: %d\n", status.Fallbacks)
	}

	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(out, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	if status.IPS > 0 {
		fmt.Fprintf(out, "  Throughput: %.0f iterations/sec\n", status.IPS)
	}

	if status.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", status.Error)
	}

	return nil
}
