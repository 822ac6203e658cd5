// Package shell runs build tool commands as local processes.
package shell

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/reactor/internal/core/domain"
	"go.trai.ch/reactor/internal/core/ports"
	"go.trai.ch/zerr"
)

// Executor implements ports.ToolExecutor using os/exec.
type Executor struct {
	logger ports.Logger
}

// NewExecutor creates a new Executor.
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{
		logger: logger,
	}
}

// Execute runs the invocation's command in its directory.
// It merges environments with the following priority (low to high):
// 1. inv.Base, or os.Environ() when nil
// 2. inv.ToolEnv, whose PATH is prepended to the base PATH
// 3. inv.Environment
func (e *Executor) Execute(ctx context.Context, inv *domain.Invocation, stdout, stderr io.Writer) error {
	if len(inv.Command) == 0 {
		return nil
	}

	name := inv.Command[0]
	cmdEnv := e.environment(inv)
	executable := name
	if !filepath.IsAbs(name) {
		if lp, err := lookPath(name, cmdEnv); err == nil {
			executable = lp
		}
	}

	cmd := exec.CommandContext(ctx, executable, inv.Command[1:]...) //nolint:gosec // commands come from project configuration

	// exec.CommandContext sets Args[0] to the executable path; keep the name as invoked.
	cmd.Args[0] = name
	cmd.Dir = inv.Dir
	cmd.Env = cmdEnv
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		failed := zerr.Wrap(errors.Join(domain.ErrToolFailed, err), "command failed")
		failed = zerr.With(failed, "goal", inv.Goal)
		return zerr.With(failed, "exit_code", exitCode)
	}
	return nil
}

// Resolve returns the absolute path of the invocation's executable.
func (e *Executor) Resolve(inv *domain.Invocation) (string, error) {
	if len(inv.Command) == 0 {
		return "", zerr.With(zerr.New("empty command"), "goal", inv.Goal)
	}
	name := inv.Command[0]
	if filepath.IsAbs(name) {
		return name, findExecutable(name)
	}
	if strings.ContainsRune(name, filepath.Separator) {
		abs := filepath.Join(inv.Dir, name)
		return abs, findExecutable(abs)
	}
	lp, err := lookPath(name, e.environment(inv))
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "executable not found"), "command", name)
	}
	return lp, nil
}

func (e *Executor) environment(inv *domain.Invocation) []string {
	base := inv.Base
	if base == nil {
		base = os.Environ()
	}
	return resolveEnvironment(base, inv.ToolEnv, inv.Environment)
}

// resolveEnvironment merges environment variables with the defined priority.
func resolveEnvironment(baseEnv, toolEnv []string, overrides map[string]string) []string {
	envMap := make(map[string]string)
	for _, entry := range baseEnv {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}

	for _, entry := range toolEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if k == "PATH" {
			if basePath, exists := envMap["PATH"]; exists && basePath != "" {
				v = v + string(os.PathListSeparator) + basePath
			}
		}
		envMap[k] = v
	}

	for k, v := range overrides {
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	slices.Sort(result)
	return result
}

// lookPath searches for an executable in the directories named by the PATH variable of env.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if p, ok := strings.CutPrefix(e, "PATH="); ok {
			path = p
			break
		}
	}
	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
