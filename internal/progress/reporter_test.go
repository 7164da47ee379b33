package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1024 * 1024, "1.0 MiB"},
		{256 * 1024 * 1024, "256 MiB"},
		{1024 * 1024 * 1024, "1.0 GiB"},
		{1024 * 1024 * 1024 * 1024, "1.0 TiB"},
		{2.5 * 1024 * 1024 * 1024 * 1024, "2.5 TiB"},
	}

	for _, tt := range tests {
		result := FormatBytes(tt.input)
		if result != tt.expected {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"100", 100},
		{"100B", 100},
		{"1KiB", 1024},
		{"1.5KiB", 1536},
		{"256MiB", 256 * 1024 * 1024},
		{"1GiB", 1024 * 1024 * 1024},
		{"1TiB", 1024 * 1024 * 1024 * 1024},
		// SI units
		{"1KB", 1000},
		{"1MB", 1000 * 1000},
		{"1GB", 1000 * 1000 * 1000},
	}

	for _, tt := range tests {
		result, err := ParseBytes(tt.input)
		if err != nil {
			t.Errorf("ParseBytes(%q): %v", tt.input, err)
			continue
		}
		if result != tt.expected {
			t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, result, tt.expected)
		}
	}
}

func TestParseBytesInvalid(t *testing.T) {
	_, err := ParseBytes("invalid")
	if err == nil {
		t.Error("expected error for invalid input")
	}
}

func TestFormatBytesNegative(t *testing.T) {
	if got := FormatBytes(-2048); got != "-2.0 KiB" {
		t.Errorf("FormatBytes(-2048) = %q", got)
	}
}

func TestReporterPartitionTracking(t *testing.T) {
	reporter := NewReporter(Options{
		TotalSize:      1024,
		Partitions:     4,
		UpdateInterval: 100 * time.Millisecond,
	})

	// Test partition tracking without starting the reporter
	reporter.PartitionStarted()
	if reporter.inProgress.Load() != 1 {
		t.Errorf("expected 1 in-progress, got %d", reporter.inProgress.Load())
	}

	reporter.Update(25, 256)
	reporter.PartitionCompleted()
	if reporter.inProgress.Load() != 0 {
		t.Errorf("expected 0 in-progress after complete, got %d", reporter.inProgress.Load())
	}
	if reporter.completedParts.Load() != 1 {
		t.Errorf("expected 1 completed, got %d", reporter.completedParts.Load())
	}
	if reporter.downloaded.Load() != 256 {
		t.Errorf("expected 256 bytes, got %d", reporter.downloaded.Load())
	}

	reporter.PartitionStarted()
	reporter.PartitionFailed()
	if reporter.inProgress.Load() != 0 {
		t.Errorf("expected 0 in-progress after fail, got %d", reporter.inProgress.Load())
	}
	if reporter.failedParts.Load() != 1 {
		t.Errorf("expected 1 failed, got %d", reporter.failedParts.Load())
	}
}

func TestReporterStartStop(t *testing.T) {
	var out bytes.Buffer
	reporter := NewReporter(Options{
		TotalSize:      1024 * 1024,
		Partitions:     4,
		UpdateInterval: 10 * time.Millisecond,
		SourceURL:      "https://example.com/file.bin",
		Output:         &out,
	})

	reporter.Start(256 * 1024)

	reporter.PartitionStarted()
	reporter.Update(50, 512*1024)
	reporter.PartitionCompleted()

	reporter.PartitionStarted()
	reporter.Update(100, 1024*1024)
	reporter.PartitionCompleted()

	time.Sleep(50 * time.Millisecond) // Let updates run

	reporter.Stop()
	reporter.Stop()

	got := out.String()
	for _, want := range []string{
		"[pfetch] Downloading: https://example.com/file.bin",
		"[pfetch] Total size: 1.0 MiB | Partitions: 4",
		"[pfetch] Resuming with 256 KiB already on disk",
		"[pfetch] downloaded: 100% | 1.0 MiB / 1.0 MiB",
		"Transferred: 768 KiB",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestReporterSamplesCounter(t *testing.T) {
	var out bytes.Buffer
	counter := &fakeCounter{}
	counter.n.Store(100 * 1024)

	reporter := NewReporter(Options{
		TotalSize:      1024 * 1024,
		Partitions:     2,
		UpdateInterval: 5 * time.Millisecond,
		Output:         &out,
		Counter:        counter,
	})
	reporter.Start(0)

	// No Update calls: every byte count below comes from the counter.
	time.Sleep(30 * time.Millisecond)
	counter.n.Store(105 * 1024)
	time.Sleep(30 * time.Millisecond)
	reporter.Stop()

	got := out.String()
	for _, want := range []string{
		"[pfetch] downloaded: 9% | 100 KiB / 1.0 MiB",
		"[pfetch] downloaded: 10% | 105 KiB / 1.0 MiB",
		"Transferred: 105 KiB",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestReporterStopWithoutStart(t *testing.T) {
	var out bytes.Buffer
	reporter := NewReporter(Options{Output: &out})
	reporter.Stop()
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}
