package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
)

// DockerRuntime drives containers through the docker CLI.
type DockerRuntime struct {
	bin string
}

func NewDockerRuntime(bin string) (*DockerRuntime, error) {
	if strings.TrimSpace(bin) == "" {
		bin = "docker"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("docker binary not found: %w", err)
	}
	return &DockerRuntime{bin: path}, nil
}

func (d *DockerRuntime) Run(ctx context.Context, spec RunSpec) (string, error) {
	if spec.Image == "" {
		return "", fmt.Errorf("image is required")
	}

	args := []string{"run", "-d", "-i"}
	for _, key := range sortedKeys(spec.Labels) {
		args = append(args, "--label", key+"="+spec.Labels[key])
	}
	for _, m := range spec.Mounts {
		args = append(args, "-v", m.HostPath+":"+m.ContainerPath)
	}
	args = append(args, spec.Image)

	res, err := d.run(ctx, args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("docker run exited with status %d: %s", res.ExitCode, res.Output())
	}

	id := strings.TrimSpace(res.Stdout)
	if id == "" {
		return "", fmt.Errorf("docker run returned no container id")
	}
	slog.Debug("Container started", "container_id", shortID(id), "image", spec.Image)
	return id, nil
}

func (d *DockerRuntime) Exec(ctx context.Context, containerID string, argv []string) (ExecResult, error) {
	if containerID == "" {
		return ExecResult{}, fmt.Errorf("container id is required")
	}
	if len(argv) == 0 {
		return ExecResult{}, fmt.Errorf("command is required")
	}

	slog.Debug("Executing in container", "container_id", shortID(containerID), "argv", argv)
	return d.run(ctx, append([]string{"exec", containerID}, argv...)...)
}

func (d *DockerRuntime) Remove(ctx context.Context, containerID string) error {
	res, err := d.run(ctx, "rm", "-f", containerID)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("docker rm exited with status %d: %s", res.ExitCode, res.Output())
	}
	slog.Debug("Container removed", "container_id", shortID(containerID))
	return nil
}

func (d *DockerRuntime) List(ctx context.Context, labels map[string]string) ([]string, error) {
	args := []string{"ps", "-aq"}
	for _, key := range sortedKeys(labels) {
		args = append(args, "--filter", "label="+key+"="+labels[key])
	}

	res, err := d.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("docker ps exited with status %d: %s", res.ExitCode, res.Output())
	}
	return strings.Fields(res.Stdout), nil
}

// run executes the docker binary. A process that started and exited non-zero is not an error.
func (d *DockerRuntime) run(ctx context.Context, args ...string) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, d.bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("docker %s: %w", args[0], ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("docker %s: %w", args[0], err)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
