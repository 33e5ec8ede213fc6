// Package tool runs the external converters the pipeline treats as black
// boxes: the SCSS compiler, the vendor prefixer, image encoders and font
// converters. A tool is an argv template; {in} and {out} switch it from a
// stdin/stdout filter to a file-to-file converter.
package tool

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/conneroisu/assetflow/internal/errors"
)

const (
	// PlaceholderIn is replaced by the path of a temporary input file.
	PlaceholderIn = "{in}"
	// PlaceholderOut is replaced by the path the tool must write to.
	PlaceholderOut = "{out}"
)

// Vars are substituted into argv templates as {name}.
type Vars map[string]string

// Tool is an external command invoked with fixed options.
type Tool struct {
	Name string
	Argv []string
	Env  []string
	Dir  string
}

// New creates a tool from an argv template.
func New(name string, argv []string, env ...string) *Tool {
	return &Tool{Name: name, Argv: argv, Env: env}
}

// Available checks that the command can be found.
func (t *Tool) Available() error {
	if len(t.Argv) == 0 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("tool %s has no command", t.Name))
	}
	if _, err := exec.LookPath(t.Argv[0]); err != nil {
		return errors.NewToolError(errors.ErrCodeToolNotFound, fmt.Sprintf("%s not found in PATH", t.Argv[0]), err).
			WithStage(t.Name)
	}
	return nil
}

// UsesFiles reports whether the template reads or writes files instead of
// the standard streams.
func (t *Tool) UsesFiles() bool {
	for _, arg := range t.Argv {
		if strings.Contains(arg, PlaceholderIn) || strings.Contains(arg, PlaceholderOut) {
			return true
		}
	}
	return false
}

// Filter pipes input through the tool's stdin and returns its stdout.
func (t *Tool) Filter(ctx context.Context, input []byte, vars Vars) ([]byte, error) {
	argv := Expand(t.Argv, vars)
	return t.exec(ctx, argv, input)
}

// Convert writes input to a temporary file named with inExt, runs the tool
// with {in}/{out} bound, and returns the contents of the output file named
// with outExt.
func (t *Tool) Convert(ctx context.Context, input []byte, inExt, outExt string, vars Vars) ([]byte, error) {
	if !t.UsesFiles() {
		return t.Filter(ctx, input, vars)
	}

	dir, err := os.MkdirTemp("", "assetflow-"+t.Name+"-")
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeWriteFailed, "cannot create scratch directory", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input"+inExt)
	out := filepath.Join(dir, "output"+outExt)
	if err := os.WriteFile(in, input, 0600); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeWriteFailed, "cannot stage tool input", err)
	}

	bound := Vars{"in": in, "out": out}
	for k, v := range vars {
		bound[k] = v
	}

	if _, err := t.exec(ctx, Expand(t.Argv, bound), nil); err != nil {
		return nil, err
	}

	result, err := os.ReadFile(out)
	if err != nil {
		return nil, errors.NewToolError(errors.ErrCodeToolFailed,
			fmt.Sprintf("%s produced no output", t.Argv[0]), err).WithStage(t.Name)
	}
	return result, nil
}

func (t *Tool) exec(ctx context.Context, argv []string, stdin []byte) ([]byte, error) {
	if len(argv) == 0 {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("tool %s has no command", t.Name))
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = t.Dir
	if len(t.Env) > 0 {
		cmd.Env = append(os.Environ(), t.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if stderrors.Is(err, exec.ErrNotFound) {
			return nil, errors.NewToolError(errors.ErrCodeToolNotFound,
				fmt.Sprintf("%s not found in PATH", argv[0]), err).WithStage(t.Name)
		}
		return nil, errors.NewToolError(errors.ErrCodeToolFailed, fmt.Sprintf("%s failed", argv[0]), err).
			WithStage(t.Name).
			WithOutput(stderr.String())
	}

	return stdout.Bytes(), nil
}

// Expand substitutes {name} placeholders in every argument.
func Expand(argv []string, vars Vars) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		for k, v := range vars {
			arg = strings.ReplaceAll(arg, "{"+k+"}", v)
		}
		out[i] = arg
	}
	return out
}
