package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calyx/internal/config"
)

const sumSource = `func @f {
  local c1: i32, size 4
  local c2: i32, size 4
L1:
  store i32 c1, 1
  store i32 c2, 2
  v1 = load i32 c1
  v2 = load i32 c2
  v3 = add i32 v1, v2
  ret i32 v3
}
`

func newREPL() (*REPL, *bytes.Buffer) {
	color.NoColor = true
	var out bytes.Buffer
	return New(config.Default(), &out), &out
}

func feed(t *testing.T, r *REPL, text string) {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		require.True(t, r.Line(line), "session ended at %q", line)
	}
}

func TestEvalOptimizesOnBlankLine(t *testing.T) {
	r, out := newREPL()

	for _, line := range strings.Split(strings.TrimSuffix(sumSource, "\n"), "\n") {
		r.Line(line)
	}
	assert.Empty(t, out.String())

	r.Line("")
	assert.True(t, strings.HasPrefix(out.String(), "func @f {\nL1:\n  v3 = imm i32 3\n  ret i32 v3\n}\n"), out.String())
	assert.Contains(t, out.String(), "folded")
}

func TestEvalReportsDiagnostics(t *testing.T) {
	r, out := newREPL()
	feed(t, r, "func @f {\nL1:\n  ret i32 v9\n}\n")

	assert.Contains(t, out.String(), "error[E0001]: value v9 is used but never defined")

	out.Reset()
	r.Line(":show")
	assert.Contains(t, out.String(), "no program yet")
}

func TestShowAndReset(t *testing.T) {
	r, out := newREPL()
	feed(t, r, sumSource)

	out.Reset()
	r.Line(":show")
	assert.Equal(t, "func @f {\nL1:\n  v3 = imm i32 3\n  ret i32 v3\n}\n", out.String())

	out.Reset()
	r.Line(":reset")
	r.Line(":show")
	assert.Contains(t, out.String(), "no program yet")
}

func TestPasses(t *testing.T) {
	r, out := newREPL()

	r.Line(":passes dce")
	assert.Equal(t, "passes: dce\n", out.String())

	out.Reset()
	r.Line(":passes nonsense")
	assert.Contains(t, out.String(), "optimizer.passes")

	out.Reset()
	r.Line(":passes")
	assert.Equal(t, "passes: dce\n", out.String())

	// dce alone keeps the stores since c1 and c2 are still read
	out.Reset()
	feed(t, r, sumSource)
	assert.Contains(t, out.String(), "store i32 c1, 1")
}

func TestRigAndRun(t *testing.T) {
	r, out := newREPL()
	feed(t, r, sumSource)

	out.Reset()
	r.Line(":rig @f")
	assert.True(t, strings.HasPrefix(out.String(), "// rig @f, 0 cross-class edges removed\nrig @f:\n"), out.String())

	out.Reset()
	r.Line(":rig @missing")
	assert.Contains(t, out.String(), "function @missing is not defined")

	out.Reset()
	r.Line(":run @f")
	assert.Equal(t, "return i32 3\n", out.String())

	out.Reset()
	r.Line(":run @f 1")
	assert.Contains(t, out.String(), "@f takes 0 arguments, got 1")
}

func TestCommands(t *testing.T) {
	r, out := newREPL()

	assert.True(t, r.Line(":help"))
	assert.Contains(t, out.String(), ":passes")

	out.Reset()
	assert.True(t, r.Line(":frobnicate"))
	assert.Contains(t, out.String(), "unknown command :frobnicate")

	assert.False(t, r.Line(":quit"))
	assert.False(t, r.Line(":q"))
}

func TestStartFlushesAtEndOfInput(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer

	Start(strings.NewReader(strings.TrimSuffix(sumSource, "\n")), &out, config.Default())

	assert.NotContains(t, out.String(), PROMPT)
	assert.Contains(t, out.String(), "v3 = imm i32 3")
}

func TestStartStopsOnQuit(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer

	Start(strings.NewReader(":quit\n"+sumSource), &out, config.Default())

	assert.Empty(t, out.String())
}
