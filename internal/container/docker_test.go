package container

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDocker writes a shell script standing in for the docker CLI. Every invocation
// appends its argv to calls.log; behaviour is chosen by the first argument.
func fakeDocker(t *testing.T, script string) (string, string) {
	t.Helper()

	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")
	bin := filepath.Join(dir, "docker")
	body := "#!/bin/sh\necho \"$@\" >> " + logPath + "\n" + script
	require.NoError(t, os.WriteFile(bin, []byte(body), 0755))
	return bin, logPath
}

func readCalls(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestDockerRuntimeRun(t *testing.T) {
	bin, logPath := fakeDocker(t, "echo 0123456789abcdef0123\n")
	rt, err := NewDockerRuntime(bin)
	require.NoError(t, err)

	id, err := rt.Run(context.Background(), RunSpec{
		Image: "lyncser-test",
		Mounts: []Mount{
			{HostPath: "/tmp/sb/config", ContainerPath: "/lyncser_config"},
			{HostPath: "/tmp/sb/data", ContainerPath: "/lyncser_data"},
		},
		Labels: map[string]string{"synccheck.managed": "true"},
	})
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123", id)

	calls := readCalls(t, logPath)
	require.Len(t, calls, 1)
	assert.Equal(t,
		"run -d -i --label synccheck.managed=true -v /tmp/sb/config:/lyncser_config -v /tmp/sb/data:/lyncser_data lyncser-test",
		calls[0])
}

func TestDockerRuntimeRunFailure(t *testing.T) {
	bin, _ := fakeDocker(t, "echo 'Unable to find image' >&2\nexit 125\n")
	rt, err := NewDockerRuntime(bin)
	require.NoError(t, err)

	_, err = rt.Run(context.Background(), RunSpec{Image: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 125")
	assert.Contains(t, err.Error(), "Unable to find image")
}

func TestDockerRuntimeExecReportsExitCode(t *testing.T) {
	bin, logPath := fakeDocker(t, "if [ \"$1\" = exec ]; then echo 'sync failed' >&2; exit 3; fi\n")
	rt, err := NewDockerRuntime(bin)
	require.NoError(t, err)

	res, err := rt.Exec(context.Background(), "abc", []string{"lyncser", "sync"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "sync failed", res.Output())
	assert.Equal(t, []string{"exec abc lyncser sync"}, readCalls(t, logPath))
}

func TestDockerRuntimeExecValidatesInput(t *testing.T) {
	bin, _ := fakeDocker(t, "exit 0\n")
	rt, err := NewDockerRuntime(bin)
	require.NoError(t, err)

	_, err = rt.Exec(context.Background(), "", []string{"true"})
	assert.Error(t, err)
	_, err = rt.Exec(context.Background(), "abc", nil)
	assert.Error(t, err)
}

func TestDockerRuntimeListAndRemove(t *testing.T) {
	bin, logPath := fakeDocker(t, "if [ \"$1\" = ps ]; then printf 'aaa\\nbbb\\n'; fi\n")
	rt, err := NewDockerRuntime(bin)
	require.NoError(t, err)

	ids, err := rt.List(context.Background(), map[string]string{"synccheck.managed": "true"})
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa", "bbb"}, ids)

	require.NoError(t, rt.Remove(context.Background(), "aaa"))

	calls := readCalls(t, logPath)
	assert.Equal(t, []string{"ps -aq --filter label=synccheck.managed=true", "rm -f aaa"}, calls)
}

func TestNewDockerRuntimeMissingBinary(t *testing.T) {
	_, err := NewDockerRuntime(filepath.Join(t.TempDir(), "no-docker"))
	assert.Error(t, err)
}

func TestParseLabel(t *testing.T) {
	k, v := ParseLabel("synccheck.managed=true")
	assert.Equal(t, "synccheck.managed", k)
	assert.Equal(t, "true", v)

	k, v = ParseLabel("synccheck")
	assert.Equal(t, "synccheck", k)
	assert.Equal(t, "true", v)
}
