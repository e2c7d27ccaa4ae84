// Package containertest provides an in-process container runtime whose containers run a
// simulated synchronization tool against a shared in-memory remote store. It models only what
// the harness can observe: exit codes and the bytes of bind-mounted files.
package containertest

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/harunnryd/synccheck/internal/container"
	"github.com/harunnryd/synccheck/internal/subject"
)

// Remote is the shared store every simulated client synchronizes against.
type Remote struct {
	mu      sync.Mutex
	entries map[string]remoteEntry
}

type remoteEntry struct {
	content string
	key     string
}

func NewRemote() *Remote {
	return &Remote{entries: make(map[string]remoteEntry)}
}

// Put stores content as if another client had uploaded it with key.
func (r *Remote) Put(path, content, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[path] = remoteEntry{content: content, key: key}
}

func (r *Remote) Get(path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[path]
	return e.content, ok
}

func (r *Remote) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Remote) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]remoteEntry)
}

// Call records one Exec invocation.
type Call struct {
	ContainerID string
	Argv        []string
	ExitCode    int
	// ConfigFiles lists the config directory entries present when a subject command started.
	ConfigFiles []string
}

// Runtime implements container.Runtime in memory.
type Runtime struct {
	// Subject is the executable name the simulated tool answers to.
	Subject string
	Remote  *Remote

	// RunErr fails every Run call.
	RunErr error
	// SetupExitCode is returned by any non-subject command, such as the discovery setup.
	SetupExitCode int
	// ExitOverrides forces an exit code for a subject subcommand, keyed by its name.
	ExitOverrides map[string]int
	// LeakUnmanaged makes sync transfer every data file, ignoring the path selection.
	LeakUnmanaged bool
	// MutateOnResync makes a sync that finds a file unchanged since the last sync rewrite it.
	MutateOnResync bool

	mu         sync.Mutex
	next       int
	containers map[string]*fakeContainer
	calls      []Call
	removed    []string
}

type fakeContainer struct {
	id     string
	labels map[string]string
	mounts []container.Mount
	// configMount is the mount the discovery symlink points at, set by the setup command.
	configMount string
	// synced holds the content each managed path had after this client's last sync.
	synced map[string]string
}

func NewRuntime(subjectName string) *Runtime {
	return &Runtime{
		Subject:    subjectName,
		Remote:     NewRemote(),
		containers: make(map[string]*fakeContainer),
	}
}

func (r *Runtime) Run(ctx context.Context, spec container.RunSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.RunErr != nil {
		return "", r.RunErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	id := fmt.Sprintf("fake-%04d", r.next)
	r.containers[id] = &fakeContainer{
		id:     id,
		labels: spec.Labels,
		mounts: slices.Clone(spec.Mounts),
		synced: make(map[string]string),
	}
	return id, nil
}

func (r *Runtime) Exec(ctx context.Context, containerID string, argv []string) (container.ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return container.ExecResult{}, err
	}

	r.mu.Lock()
	c, ok := r.containers[containerID]
	r.mu.Unlock()
	if !ok {
		return container.ExecResult{}, fmt.Errorf("no such container: %s", containerID)
	}

	var res container.ExecResult
	var configFiles []string
	if len(argv) > 0 && filepath.Base(argv[0]) == r.Subject {
		configFiles = c.configFiles()
		res = r.subject(c, argv[1:])
	} else {
		res = container.ExecResult{ExitCode: r.SetupExitCode}
		if r.SetupExitCode == 0 {
			if target := linkTarget(argv); target != "" {
				r.mu.Lock()
				c.configMount = target
				r.mu.Unlock()
			}
		}
	}

	r.mu.Lock()
	r.calls = append(r.calls, Call{ContainerID: containerID, Argv: slices.Clone(argv), ExitCode: res.ExitCode, ConfigFiles: configFiles})
	r.mu.Unlock()
	return res, nil
}

func (r *Runtime) Remove(ctx context.Context, containerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.containers[containerID]; !ok {
		return fmt.Errorf("no such container: %s", containerID)
	}
	delete(r.containers, containerID)
	r.removed = append(r.removed, containerID)
	return nil
}

func (r *Runtime) List(ctx context.Context, labels map[string]string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, c := range r.containers {
		matches := true
		for k, v := range labels {
			if c.labels[k] != v {
				matches = false
				break
			}
		}
		if matches {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Calls returns every Exec invocation in order.
func (r *Runtime) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// SubjectCalls returns the subcommands issued to the simulated tool, in order.
func (r *Runtime) SubjectCalls() []Call {
	var out []Call
	for _, call := range r.Calls() {
		if len(call.Argv) > 0 && filepath.Base(call.Argv[0]) == r.Subject {
			out = append(out, call)
		}
	}
	return out
}

func (r *Runtime) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.containers)
}

func (r *Runtime) Removed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.removed)
}

func (r *Runtime) subject(c *fakeContainer, args []string) container.ExecResult {
	if len(args) == 0 {
		return fail(2, "usage: %s <command>", r.Subject)
	}
	if code, ok := r.ExitOverrides[args[0]]; ok {
		return fail(code, "%s: forced exit", args[0])
	}
	if c.configMount == "" {
		return fail(1, "config directory not found")
	}

	cfgDir, ok := c.mountHostPath(c.configMount)
	if !ok {
		return fail(1, "config directory not mounted")
	}

	if blank(filepath.Join(cfgDir, subject.CredentialsFile)) || blank(filepath.Join(cfgDir, subject.TokenFile)) {
		return fail(1, "unable to authenticate: missing credentials or token")
	}

	switch args[0] {
	case subject.CommandDeleteRemote:
		if !slices.Contains(args[1:], subject.FlagAssumeYes) {
			return fail(1, "refusing to delete remote files without confirmation")
		}
		r.Remote.reset()
		return container.ExecResult{Stdout: "deleted all remote files\n"}
	case subject.CommandSync:
		return r.sync(c, cfgDir)
	default:
		return fail(2, "unknown command %q", args[0])
	}
}

func (r *Runtime) sync(c *fakeContainer, cfgDir string) container.ExecResult {
	keyBytes, err := os.ReadFile(filepath.Join(cfgDir, subject.EncryptionKeyFile))
	if err != nil || strings.TrimSpace(string(keyBytes)) == "" {
		return fail(1, "encryption key not found")
	}
	key := string(keyBytes)

	globalBytes, err := os.ReadFile(filepath.Join(cfgDir, subject.GlobalConfigFile))
	if err != nil {
		return fail(1, "read global config: %v", err)
	}
	sel, err := subject.ParsePathSelection(string(globalBytes))
	if err != nil {
		return fail(1, "%v", err)
	}

	local := subject.DefaultLocalConfig()
	if data, err := os.ReadFile(filepath.Join(cfgDir, subject.LocalConfigFile)); err == nil {
		if local, err = subject.ParseLocalConfig(string(data)); err != nil {
			return fail(1, "%v", err)
		}
	}

	paths := sel.Managed(local.Tags...)
	if r.LeakUnmanaged {
		paths = r.everyDataPath(c, cfgDir, paths)
	}

	var out strings.Builder
	for _, managed := range paths {
		hostPath, ok := c.hostPath(managed)
		if !ok {
			continue
		}

		localContent, localErr := os.ReadFile(hostPath)
		hasLocal := localErr == nil

		r.Remote.mu.Lock()
		remote, hasRemote := r.Remote.entries[managed]
		r.Remote.mu.Unlock()

		switch {
		case hasLocal && !hasRemote:
			r.Remote.Put(managed, string(localContent), key)
			c.synced[managed] = string(localContent)
			fmt.Fprintf(&out, "uploaded %s\n", managed)
		case !hasLocal && hasRemote:
			if remote.key != key {
				return fail(1, "decrypt %s: authentication failed", managed)
			}
			if err := os.WriteFile(hostPath, []byte(remote.content), 0644); err != nil {
				return fail(1, "write %s: %v", managed, err)
			}
			c.synced[managed] = remote.content
			fmt.Fprintf(&out, "downloaded %s\n", managed)
		case hasLocal && hasRemote && string(localContent) != remote.content:
			if remote.key != key {
				return fail(1, "decrypt %s: authentication failed", managed)
			}
			if last, seen := c.synced[managed]; seen && last == string(localContent) {
				if err := os.WriteFile(hostPath, []byte(remote.content), 0644); err != nil {
					return fail(1, "write %s: %v", managed, err)
				}
				c.synced[managed] = remote.content
				fmt.Fprintf(&out, "downloaded %s\n", managed)
			} else {
				r.Remote.Put(managed, string(localContent), key)
				c.synced[managed] = string(localContent)
				fmt.Fprintf(&out, "uploaded %s\n", managed)
			}
		case hasLocal:
			if last, seen := c.synced[managed]; seen && last == string(localContent) && r.MutateOnResync {
				mutated := string(localContent) + "~"
				if err := os.WriteFile(hostPath, []byte(mutated), 0644); err != nil {
					return fail(1, "write %s: %v", managed, err)
				}
				fmt.Fprintf(&out, "rewrote %s\n", managed)
				continue
			}
			c.synced[managed] = string(localContent)
		}
	}
	return container.ExecResult{Stdout: out.String()}
}

// everyDataPath extends paths with every file in the container's non-config mounts and every
// remote entry.
func (r *Runtime) everyDataPath(c *fakeContainer, cfgDir string, paths []string) []string {
	out := slices.Clone(paths)
	for _, m := range c.mounts {
		if m.HostPath == cfgDir {
			continue
		}
		entries, err := os.ReadDir(m.HostPath)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				out = append(out, path.Join(m.ContainerPath, e.Name()))
			}
		}
	}

	r.Remote.mu.Lock()
	for p := range r.Remote.entries {
		out = append(out, p)
	}
	r.Remote.mu.Unlock()

	slices.Sort(out)
	return slices.Compact(out)
}

func (c *fakeContainer) configFiles() []string {
	dir, ok := c.mountHostPath(c.configMount)
	if c.configMount == "" || !ok {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// mountHostPath returns the host directory bound exactly at containerPath.
func (c *fakeContainer) mountHostPath(containerPath string) (string, bool) {
	for _, m := range c.mounts {
		if strings.TrimSuffix(m.ContainerPath, "/") == strings.TrimSuffix(containerPath, "/") {
			return m.HostPath, true
		}
	}
	return "", false
}

// hostPath maps an in-container file path to the bind-mounted host path.
func (c *fakeContainer) hostPath(containerPath string) (string, bool) {
	for _, m := range c.mounts {
		prefix := strings.TrimSuffix(m.ContainerPath, "/") + "/"
		if strings.HasPrefix(containerPath, prefix) {
			return filepath.Join(m.HostPath, filepath.FromSlash(strings.TrimPrefix(containerPath, prefix))), true
		}
	}
	return "", false
}

// linkTarget extracts the symlink target from a shell setup command such as
// "mkdir -p ~/.config && ln -sfn /lyncser_config ~/.config/lyncser".
func linkTarget(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	fields := strings.Fields(argv[len(argv)-1])
	for i, f := range fields {
		if f != "ln" {
			continue
		}
		var operands []string
		for _, op := range fields[i+1:] {
			if op == "&&" || op == ";" {
				break
			}
			if !strings.HasPrefix(op, "-") {
				operands = append(operands, op)
			}
		}
		if len(operands) == 2 {
			return operands[0]
		}
	}
	return ""
}

func blank(path string) bool {
	data, err := os.ReadFile(path)
	return err != nil || strings.TrimSpace(string(data)) == ""
}

func fail(code int, format string, args ...interface{}) container.ExecResult {
	return container.ExecResult{ExitCode: code, Stderr: fmt.Sprintf(format, args...) + "\n"}
}
