package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const header = `static const float W1[2][2] = {{1.0f, -1.0f}, {0.5f, 40000.0f}};
static const float b1[2] = {0.25f, -0.25f};
static const float W2[2][3] = {{0, 0, 0}, {0, 0, 0}};
static const float b2[3] = {0.0f, 0.0001f, -0.0001f};
`

var sizes = []string{"-input-size", "2", "-hidden-size", "2", "-output-size", "3", "-log-level", "error"}

func TestRunPositionalPaths(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "w.h")
	out := filepath.Join(dir, "w_int32.h")
	if err := os.WriteFile(in, []byte(header), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append(sizes, in, out), &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr.String())
	}

	src, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !strings.Contains(string(src), "const int32_t b2_fp[3] = {0, 7, -7};") {
		t.Errorf("unexpected output:\n%s", src)
	}
	if !strings.Contains(stdout.String(), "Quantization statistics:") {
		t.Errorf("stdout missing statistics:\n%s", stdout.String())
	}
}

func TestRunFlagPaths(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "w.h")
	out := filepath.Join(dir, "w_int32.h")
	if err := os.WriteFile(in, []byte(header), 0o644); err != nil {
		t.Fatal(err)
	}

	args := append([]string{"-input", in, "-output", out}, sizes...)
	if code := run(context.Background(), args, &bytes.Buffer{}, &bytes.Buffer{}); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestRunFailureExitCode(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "w.h")
	out := filepath.Join(dir, "w_int32.h")
	src := strings.Replace(header, "static const float b2[3] = {0.0f, 0.0001f, -0.0001f};\n", "", 1)
	if err := os.WriteFile(in, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	var stderr bytes.Buffer
	code := run(context.Background(), append(sizes, in, out), &bytes.Buffer{}, &stderr)
	if code == 0 {
		t.Fatal("expected non-zero exit code")
	}
	if !strings.Contains(stderr.String(), "b2") {
		t.Errorf("stderr does not name b2:\n%s", stderr.String())
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output should not exist after a failed run")
	}
}

func TestRunTooManyArgs(t *testing.T) {
	if code := run(context.Background(), []string{"a", "b", "c"}, &bytes.Buffer{}, &bytes.Buffer{}); code != 2 {
		t.Errorf("exit code %d, want 2", code)
	}
}
