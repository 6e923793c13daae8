package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calyx/internal/interp"
	"calyx/internal/ir"
	"calyx/internal/optimizer"
	"calyx/internal/regalloc"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, SchemaVersion, c.Version)
	assert.Equal(t, optimizer.DefaultMaxIterations, c.Optimizer.MaxIterations)
	assert.Equal(t, []string{"local", "dce"}, c.Optimizer.Passes)
	assert.Equal(t, regalloc.DefaultPopulation, c.Registers.GPR)
	assert.Equal(t, regalloc.DefaultPopulation, c.Registers.FPR)
	assert.Equal(t, interp.Options{MaxSteps: interp.DefaultMaxSteps, MaxDepth: interp.DefaultMaxDepth}, c.InterpOptions())
	require.NoError(t, c.Validate())
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
version: 1.2.0
optimizer:
  maxIterations: 4
  passes: [dce]
registers:
  gpr: 8
interp:
  maxSteps: 500
log:
  verbosity: 2
  file: calyx.log
`), "test.yaml")
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", c.Version)
	assert.Equal(t, 4, c.Optimizer.MaxIterations)
	assert.Equal(t, []string{"dce"}, c.Optimizer.Passes)
	assert.Equal(t, 8, c.Registers.GPR)
	assert.Equal(t, regalloc.DefaultPopulation, c.Registers.FPR)
	assert.Equal(t, 500, c.Interp.MaxSteps)
	assert.Equal(t, interp.DefaultMaxDepth, c.Interp.MaxDepth)
	assert.Equal(t, LogConfig{Verbosity: 2, File: "calyx.log"}, c.Log)

	p, err := c.Pipeline()
	require.NoError(t, err)
	require.Len(t, p.Passes(), 1)
	assert.Equal(t, "dce", p.Passes()[0].Name())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"syntax", "optimizer: [", "parse bad.yaml"},
		{"version", "version: one", `version "one"`},
		{"unsupported version", "version: 2.0.0", "schema version 2.0.0 is not supported"},
		{"unknown pass", "optimizer:\n  passes: [local, inline]", `unknown pass "inline"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), "bad.yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestWriteAndFind(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	c := Default()
	c.Registers.FPR = 4
	require.NoError(t, Write(filepath.Join(root, Filename), c))

	found, path, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, Filename), path)
	assert.Equal(t, c, found)
}

func TestFindWithoutFile(t *testing.T) {
	c, path, err := Find(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, Default(), c)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read ")
}

func TestRegisterSpace(t *testing.T) {
	b := ir.NewBuilder("f")
	d := b.Local(ir.Double, 8)
	v := b.LoadLocal(ir.Double, d, 0)
	b.Return(ir.Double, ir.VarOperand(v))

	c := Default()
	c.Registers.FPR = 2
	rs, err := c.RegisterSpace(b.Function())
	require.NoError(t, err)
	assert.Equal(t, regalloc.FPR, rs.RegisterType(regalloc.Var(v)))
	assert.Equal(t, 2, rs.RegisterTypePopulation(regalloc.FPR))
}
