package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/rosenopt/internal/opt"
	"github.com/cwbudde/rosenopt/internal/store"
)

func testConfig() store.JobConfig {
	return store.JobConfig{
		Strategy:      opt.StrategyNewton,
		InitialPoint:  []float64{-1.2, 1},
		Tolerance:     1e-6,
		MaxIterations: 1000,
	}.WithDefaults()
}

func withDataDir(t *testing.T, dir string) {
	t.Helper()
	original := dataDir
	dataDir = dir
	t.Cleanup(func() { dataDir = original })
}

func TestSelectCheckpointsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "job1", Timestamp: now.AddDate(0, 0, -10)}, // 10 days old
		{JobID: "job2", Timestamp: now.AddDate(0, 0, -5)},  // 5 days old
		{JobID: "job3", Timestamp: now.AddDate(0, 0, -1)},  // 1 day old
		{JobID: "job4", Timestamp: now.AddDate(0, 0, -30)}, // 30 days old
	}

	toDelete := selectCheckpointsForDeletion(infos, 0, 7)

	if len(toDelete) != 2 {
		t.Errorf("Expected 2 checkpoints to delete, got %d", len(toDelete))
	}

	found10 := false
	found30 := false
	for _, info := range toDelete {
		if info.JobID == "job1" {
			found10 = true
		}
		if info.JobID == "job4" {
			found30 = true
		}
	}

	if !found10 || !found30 {
		t.Error("Expected job1 and job4 to be selected for deletion")
	}
}

func TestSelectCheckpointsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "job1", Timestamp: now.AddDate(0, 0, -10)},
		{JobID: "job2", Timestamp: now.AddDate(0, 0, -5)},
		{JobID: "job3", Timestamp: now.AddDate(0, 0, -1)},
		{JobID: "job4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectCheckpointsForDeletion(infos, 2, 0)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 checkpoints to delete, got %d", len(toDelete))
	}

	// Oldest first.
	if toDelete[0].JobID != "job4" || toDelete[1].JobID != "job1" {
		t.Errorf("Expected job4 and job1, got %s and %s", toDelete[0].JobID, toDelete[1].JobID)
	}
}

func TestSelectCheckpointsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.CheckpointInfo{
		{JobID: "job1", Timestamp: now.AddDate(0, 0, -10)},
		{JobID: "job2", Timestamp: now.AddDate(0, 0, -5)},
		{JobID: "job3", Timestamp: now.AddDate(0, 0, -1)},
		{JobID: "job4", Timestamp: now.AddDate(0, 0, -30)},
		{JobID: "job5", Timestamp: now.AddDate(0, 0, -2)},
	}

	// Age selects job1 and job4; keeping 3 would drop the same two.
	toDelete := selectCheckpointsForDeletion(infos, 3, 7)

	if len(toDelete) != 2 {
		t.Errorf("Expected 2 checkpoints to delete without duplicates, got %d", len(toDelete))
	}
}

func TestSelectCheckpointsForDeletion_KeepMoreThanAvailable(t *testing.T) {
	infos := []store.CheckpointInfo{
		{JobID: "job1", Timestamp: time.Now()},
	}

	if toDelete := selectCheckpointsForDeletion(infos, 5, 0); len(toDelete) != 0 {
		t.Errorf("Expected nothing to delete, got %d", len(toDelete))
	}
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("Hello, World!")
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	size, err := getDirSize(tmpDir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}

	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID(abc) = %s", got)
	}
	if got := shortID("0123456789abcdef"); got != "0123456789ab..." {
		t.Errorf("shortID truncated to %s", got)
	}
}

func TestCheckpointsListCommand_NoCheckpoints(t *testing.T) {
	withDataDir(t, t.TempDir())

	err := runListCheckpoints(nil, nil)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestCheckpointsListCommand_WithCheckpoints(t *testing.T) {
	tmpDir := t.TempDir()

	checkpointStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	checkpoint := store.NewCheckpoint("test-job-id", []float64{0.5, 0.25}, 0.25, 1.0, 24.2, 10, opt.StateRunning, testConfig())

	err = checkpointStore.SaveCheckpoint("test-job-id", checkpoint)
	if err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	withDataDir(t, tmpDir)

	err = runListCheckpoints(nil, nil)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestShowCheckpoint(t *testing.T) {
	checkpointStore, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	checkpoint := store.NewCheckpoint("job", []float64{0.5, 0.25}, 0.25, 1.0, 24.2, 3, opt.StateRunning, testConfig())
	if err := checkpointStore.SaveCheckpoint("job", checkpoint); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	tw, err := store.NewTraceWriter(checkpointStore.JobDir("job"), false)
	if err != nil {
		t.Fatalf("Failed to create trace: %v", err)
	}
	for i := 1; i <= 3; i++ {
		tw.Write(store.TraceEntry{Iteration: i, Value: float64(10 - i), GradNorm: 1, Step: 1, Timestamp: time.Now()})
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Failed to close trace: %v", err)
	}

	var out bytes.Buffer
	if err := showCheckpoint(&out, checkpointStore, "job", 2); err != nil {
		t.Fatalf("showCheckpoint failed: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "Iteration: 3 of 1000") {
		t.Errorf("Missing iteration line:\n%s", text)
	}
	if strings.Contains(text, "\n1  ") {
		t.Errorf("Tail should skip the first entry:\n%s", text)
	}
	if !strings.Contains(text, "ITER") {
		t.Errorf("Missing trace table:\n%s", text)
	}

	if err := showCheckpoint(&out, checkpointStore, "missing", 2); err == nil {
		t.Error("Expected error for missing checkpoint")
	}
}

func TestCheckpointsCleanCommand_NoFlags(t *testing.T) {
	withDataDir(t, t.TempDir())

	keepLast = 0
	olderThanDays = 0

	err := runCleanCheckpoints(nil, nil)
	if err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestCheckpointsCleanCommand_WithForce(t *testing.T) {
	tmpDir := t.TempDir()

	checkpointStore, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	checkpoint := store.NewCheckpoint("old-job", []float64{0.5, 0.25}, 0.25, 1.0, 24.2, 10, opt.StateRunning, testConfig())
	checkpoint.Timestamp = time.Now().AddDate(0, 0, -30)

	err = checkpointStore.SaveCheckpoint("old-job", checkpoint)
	if err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	withDataDir(t, tmpDir)

	keepLast = 0
	olderThanDays = 7
	forceClean = true
	defer func() {
		olderThanDays = 0
		forceClean = false
	}()

	err = runCleanCheckpoints(nil, nil)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	_, err = checkpointStore.LoadCheckpoint("old-job")
	if err == nil {
		t.Error("Expected checkpoint to be deleted")
	}
}
