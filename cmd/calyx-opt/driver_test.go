package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calyx/internal/config"
)

const sumPath = "../../grammar/testdata/sum.calyx"

func newDriver() (*driver, *bytes.Buffer, *bytes.Buffer) {
	color.NoColor = true
	var out, errOut bytes.Buffer
	return &driver{cfg: config.Default(), out: &out, errOut: &errOut}, &out, &errOut
}

func writeFile(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestProcessSum(t *testing.T) {
	d, out, errOut := newDriver()

	require.True(t, d.process(sumPath), errOut.String())
	assert.Equal(t, "func @f {\nL1:\n  v5 = imm i32 3\n  ret i32 v5\n}\n", out.String())
	assert.Contains(t, errOut.String(), "Optimized "+sumPath)
	assert.Contains(t, errOut.String(), "folded")
}

func TestVerifyOnly(t *testing.T) {
	d, out, errOut := newDriver()
	d.verifyOnly = true

	require.True(t, d.process(sumPath))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Verified "+sumPath)
}

func TestProcessReportsDiagnostics(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.calyx", "func @f {\nL1:\n  v1 = add i32 v2, 1\n  ret i32 v1\n}\n")
	d, out, errOut := newDriver()

	assert.False(t, d.process(path))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "error[E0001]: value v2 is used but never defined")
	assert.Contains(t, errOut.String(), "Compilation failed")
}

func TestProcessSyntaxError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "syntax.calyx", "func @f {\nL1:\n  ret i32 v1 v2\n}\n")
	d, _, errOut := newDriver()

	assert.False(t, d.process(path))
	assert.Contains(t, errOut.String(), "error[E0100]")
}

func TestProcessMissingFile(t *testing.T) {
	d, _, errOut := newDriver()
	assert.False(t, d.process(filepath.Join(t.TempDir(), "missing.calyx")))
	assert.Contains(t, errOut.String(), "failed to read file")
}

func TestPrintRIGs(t *testing.T) {
	d, out, errOut := newDriver()
	d.rig = true

	require.True(t, d.process(sumPath), errOut.String())
	assert.Contains(t, out.String(), "// rig @f\n")
}

func TestCompareRuns(t *testing.T) {
	path := writeFile(t, t.TempDir(), "double.calyx", `global @last: i32

func @double {
  local c1: i32, size 4, arg 0
  local c2: i32, size 4
L1:
  v1 = load i32 c1
  store i32 c2, v1
  v2 = load i32 c2
  v3 = add i32 v1, v2
  sglob i32 @last, v3
  ret i32 v3
}
`)
	d, out, errOut := newDriver()
	d.run = "double"
	d.runArgs = []string{"21"}

	require.True(t, d.process(path), errOut.String())
	assert.Contains(t, out.String(), "// trace @double")
	assert.Contains(t, out.String(), "store i32 @last+0 = 42\nreturn i32 42\n")
}

func TestBatchIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.calyx", "func @g {\nL1:\n  ret void\n}\n")
	bad := writeFile(t, dir, "bad.calyx", "func @b {\nL1:\n  br L2\n}\n")

	d, out, _ := newDriver()
	d.outDir = filepath.Join(dir, "out")

	assert.False(t, d.batch([]string{good, bad}))
	assert.Empty(t, out.String())

	written, err := os.ReadFile(filepath.Join(d.outDir, "good.calyx"))
	require.NoError(t, err)
	assert.Equal(t, "func @g {\nL1:\n  ret void\n}\n", string(written))
	assert.NoFileExists(t, filepath.Join(d.outDir, "bad.calyx"))
}

func TestWatchLoop(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "w.calyx", "func @w {\nL1:\n  ret void\n}\n")
	abs, err := filepath.Abs(path)
	require.NoError(t, err)

	events := make(chan fsnotify.Event, 3)
	errs := make(chan error)
	events <- fsnotify.Event{Name: filepath.Join(dir, "other.txt"), Op: fsnotify.Write}
	events <- fsnotify.Event{Name: abs, Op: fsnotify.Chmod}
	events <- fsnotify.Event{Name: abs, Op: fsnotify.Write}
	close(events)

	d, out, errOut := newDriver()
	require.NoError(t, d.loop(context.Background(), events, errs, map[string]string{abs: path}))

	assert.True(t, strings.HasPrefix(errOut.String(), path+" changed\n"), errOut.String())
	assert.Equal(t, "func @w {\nL1:\n  ret void\n}\n", out.String())
}

func TestWatchLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, _, _ := newDriver()
	assert.NoError(t, d.loop(ctx, make(chan fsnotify.Event), make(chan error), nil))
}
