package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func manifestFile(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "m.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

const incManifest = `fns:
  - name: inc
    sig: "for<n: int> fn(i32[n]) -> i32[n + 1]"
    trusted: true
`

func TestWFCommand(t *testing.T) {
	path := manifestFile(t, incManifest)
	out, err := execute(t, "wf", path)
	require.NoError(t, err)
	assert.Equal(t, path+": ok\n", out)
}

func TestWFCommandFails(t *testing.T) {
	path := manifestFile(t, "fns:\n  - name: f\n    sig: \"fn(i32[m])\"\n")
	_, err := execute(t, "wf", path)
	var code exitCode
	require.True(t, errors.As(err, &code), "got %v", err)
	assert.Equal(t, exitCode(exitFailed), code)
}

func TestQualifiersCommand(t *testing.T) {
	path := manifestFile(t, incManifest)
	out, err := execute(t, "qualifiers", path)
	require.NoError(t, err)
	assert.Contains(t, out, "inc:\n")
}

func TestBadConfig(t *testing.T) {
	path := manifestFile(t, incManifest)
	_, err := execute(t, "wf", "--config", filepath.Join(t.TempDir(), "missing.yaml"), path)
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestMissingManifest(t *testing.T) {
	_, err := execute(t, "wf", filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorContains(t, err, "manifest not found")
}
