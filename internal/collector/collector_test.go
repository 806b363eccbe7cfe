package collector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "collector.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestRunRelaysStdoutOnSuccess(t *testing.T) {
	script := writeScript(t, `printf 'collected 3 datasets\nline two'`)

	result, err := New(script).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "collected 3 datasets\nline two", result.Stdout)
}

func TestRunReportsExitCode(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{name: "generic failure", code: 1},
		{name: "usage error", code: 2},
		{name: "high code", code: 42},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			script := writeScript(t, "echo 'boom' >&2\nexit "+strconv.Itoa(tc.code))

			result, err := New(script).Run(context.Background())
			require.Error(t, err)

			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr), "expected *ExitError, got %T", err)
			assert.Equal(t, tc.code, exitErr.Code)
			assert.Equal(t, tc.code, result.ExitCode)
			assert.Contains(t, err.Error(), strconv.Itoa(tc.code))
			assert.Equal(t, "boom\n", exitErr.Stderr)
		})
	}
}

func TestRunLaunchFailure(t *testing.T) {
	t.Run("missing script", func(t *testing.T) {
		_, err := New(filepath.Join(t.TempDir(), "absent.sh")).Run(context.Background())
		require.Error(t, err)

		var exitErr *ExitError
		assert.False(t, errors.As(err, &exitErr))
		assert.Contains(t, err.Error(), "start collector")
	})

	t.Run("not executable", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "collector.sh")
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0o644))

		_, err := New(path).Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "start collector")
	})

	t.Run("empty script", func(t *testing.T) {
		_, err := New("").Run(context.Background())
		require.ErrorIs(t, err, ErrNoScript)
	})
}

func TestRunWithInterpreter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collector.sh")
	require.NoError(t, os.WriteFile(path, []byte("echo via interpreter\n"), 0o644))

	result, err := New(path, WithInterpreter("sh")).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "via interpreter\n", result.Stdout)
}

func TestRunWithDir(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, "pwd")

	result, err := New(script, WithDir(dir)).Run(context.Background())
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(strings.TrimSpace(result.Stdout))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWithTimeoutKillsHungCollector(t *testing.T) {
	script := writeScript(t, "exec sleep 30")
	runner := WithTimeout(New(script), 100*time.Millisecond)

	start := time.Now()
	_, err := runner.Run(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "100ms")
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestWithTimeoutNonPositiveIsPassthrough(t *testing.T) {
	inner := New("/bin/true")
	assert.Same(t, inner, WithTimeout(inner, 0))
	assert.Same(t, inner, WithTimeout(inner, -time.Second))
}

func TestWithTimeoutLeavesFastRunsAlone(t *testing.T) {
	script := writeScript(t, "echo quick")

	result, err := WithTimeout(New(script), 5*time.Second).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "quick\n", result.Stdout)
}

func TestRunSucceedsWhenBackgroundChildHoldsOutput(t *testing.T) {
	script := writeScript(t, "sleep 3 &\necho done\nexit 0")
	runner := New(script).(*execRunner)
	runner.waitDelay = 200 * time.Millisecond

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "done\n", result.Stdout)
}

func TestRunReportsTerminatingSignal(t *testing.T) {
	script := writeScript(t, "kill -TERM $$")

	result, err := New(script).Run(context.Background())
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected *ExitError, got %T", err)
	assert.Equal(t, -15, exitErr.Code)
	assert.Equal(t, -15, result.ExitCode)
	assert.Equal(t, "Script failed with return code -15", err.Error())
}
