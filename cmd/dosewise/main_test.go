package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var binaryPath string

func TestMain(m *testing.M) {
	binDir, err := os.MkdirTemp("", "dosewise-bin")
	if err != nil {
		panic("Failed to create bin directory: " + err.Error())
	}

	binaryPath = filepath.Join(binDir, "dosewise_test")

	// Build the binary once
	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	output, err := cmd.CombinedOutput()
	if err != nil {
		panic("Failed to build test binary: " + err.Error() + "\n" + string(output))
	}

	exitCode := m.Run()

	os.RemoveAll(binDir)
	os.Exit(exitCode)
}

// runBinary runs the binary against a throwaway data directory with remote
// lookups off
func runBinary(t *testing.T, dataDir string, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command(binaryPath, append([]string{"--data", dataDir}, args...)...)
	cmd.Env = append(os.Environ(),
		"HOME="+t.TempDir(),
		"DOSEWISE_STORAGE_DRIVER=memory",
		"DOSEWISE_CATALOG_REMOTE_ENABLED=false",
	)
	input, _ := os.Open(os.DevNull)
	cmd.Stdin = input
	defer input.Close()

	output, err := cmd.CombinedOutput()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return string(output), exitErr.ExitCode()
	}
	if err != nil {
		t.Fatalf("failed to run binary: %v", err)
	}
	return string(output), 0
}

func TestBinaryHelp(t *testing.T) {
	for _, arg := range []string{"help", "--help"} {
		output, _ := runBinary(t, t.TempDir(), arg)
		if !strings.Contains(output, "take <id> [HH:MM]") {
			t.Fatalf("%s output missing command list:\n%s", arg, output)
		}
	}
}

func TestBinaryVersion(t *testing.T) {
	output, code := runBinary(t, t.TempDir(), "version")
	if code != 0 {
		t.Fatalf("version exited %d", code)
	}
	if !strings.HasPrefix(output, "DoseWise version ") {
		t.Fatalf("unexpected version output %q", output)
	}
}

func TestBinaryUnknownCommand(t *testing.T) {
	output, code := runBinary(t, t.TempDir(), "frobnicate")
	if code != 2 {
		t.Fatalf("unknown command exited %d, want 2", code)
	}
	if !strings.Contains(output, `Unknown command "frobnicate"`) {
		t.Fatalf("unexpected output:\n%s", output)
	}
}

func TestBinaryConfigInitAndPath(t *testing.T) {
	dir := t.TempDir()

	output, code := runBinary(t, dir, "config", "init")
	if code != 0 {
		t.Fatalf("config init exited %d:\n%s", code, output)
	}
	want := filepath.Join(dir, "dosewise.yaml")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	output, _ = runBinary(t, dir, "config", "path")
	if strings.TrimSpace(output) != want {
		t.Fatalf("config path = %q, want %q", strings.TrimSpace(output), want)
	}

	if _, code := runBinary(t, dir, "config", "init"); code != 1 {
		t.Fatalf("second config init exited %d, want 1", code)
	}
}

func TestBinaryRequiresProfile(t *testing.T) {
	output, code := runBinary(t, t.TempDir(), "list")
	if code != 1 {
		t.Fatalf("list exited %d, want 1", code)
	}
	if !strings.Contains(output, "dosewise onboard") {
		t.Fatalf("unexpected output:\n%s", output)
	}
}

func TestBinaryStatusAndSearch(t *testing.T) {
	dir := t.TempDir()

	output, code := runBinary(t, dir, "status")
	if code != 0 || !strings.Contains(output, "Storage: memory") {
		t.Fatalf("status exited %d:\n%s", code, output)
	}

	output, code = runBinary(t, dir, "search", "ibupro")
	if code != 0 || !strings.Contains(output, "Ibuprofen") {
		t.Fatalf("search exited %d:\n%s", code, output)
	}
}

func TestBinaryDoctor(t *testing.T) {
	output, code := runBinary(t, t.TempDir(), "doctor")
	if !strings.Contains(output, "DoseWise Diagnostics") {
		t.Fatalf("doctor produced unexpected output:\n%s", output)
	}
	// no profile yet
	if code != 1 {
		t.Fatalf("doctor exited %d, want 1", code)
	}
}

func TestDataFlagCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	if _, code := runBinary(t, dir, "status"); code != 0 {
		t.Fatalf("status exited %d", code)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("data directory not created: %v", err)
	}
}
