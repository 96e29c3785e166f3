package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nerfloss/internal/raybatch"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var smallBatch = []string{"--rays", "8", "--samples", "16,8", "--height", "4", "--width", "4"}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "nerfloss "+version+"\n", out)
}

func TestSynthThenEval(t *testing.T) {
	dir := t.TempDir()
	batch := filepath.Join(dir, "batch.safetensors")

	out, err := run(t, append([]string{"synth", "--out", batch, "--seed", "3"}, smallBatch...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 8 rays, 2 levels")

	b, meta, err := raybatch.Load(batch)
	require.NoError(t, err)
	assert.Equal(t, "3", meta["seed"])
	assert.Equal(t, 8, b.Rays())

	cfgPath := filepath.Join(dir, "losses.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("depth:\n  kind: gaussian_weighted\n"), 0o600))

	out, err = run(t, "eval", "--config", cfgPath, batch, batch)
	require.NoError(t, err)
	for _, want := range []string{"interlevel", "distortion", "mono_depth", "total", "depth error", "mean over batches"} {
		assert.Contains(t, out, want)
	}
}

func TestEval_Errors(t *testing.T) {
	_, err := run(t, "eval")
	assert.Error(t, err)

	_, err = run(t, "eval", filepath.Join(t.TempDir(), "missing.safetensors"))
	assert.Error(t, err)

	dir := t.TempDir()
	batch := filepath.Join(dir, "batch.safetensors")
	_, err = run(t, append([]string{"synth", "--out", batch}, smallBatch...)...)
	require.NoError(t, err)
	cfgPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("ssi:\n  scales: 0\n"), 0o600))
	_, err = run(t, "eval", "-c", cfgPath, batch)
	assert.Error(t, err)
}

func TestFit(t *testing.T) {
	out := filepath.Join(t.TempDir(), "fitted.safetensors")
	stdout, err := run(t, append([]string{"fit", "--steps", "5", "--out", out}, smallBatch...)...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "after 5 steps")

	b, meta, err := raybatch.Load(out)
	require.NoError(t, err)
	assert.Equal(t, "5", meta["fit_steps"])
	assert.True(t, b.Has("proposal_logits"))

	_, err = run(t, "fit", "--samples", "8")
	assert.Error(t, err)
}
