package video

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
)

// Process is a started external command.
type Process interface {
	Stdin() io.WriteCloser
	// Wait blocks until the process exits. A non-zero exit is reported as
	// an error implementing ExitCode() int.
	Wait() error
	// Output is the combined stdout and stderr captured so far.
	Output() []byte
}

// Runner starts external commands. ExecRunner is the real implementation;
// tests substitute fakes.
type Runner interface {
	Start(ctx context.Context, name string, args ...string) (Process, error)
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type ExecRunner struct{}

func (ExecRunner) Start(ctx context.Context, name string, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	p := &execProcess{cmd: cmd}
	cmd.Stdout = &p.out
	cmd.Stderr = &p.out

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	p.stdin = stdin
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return p, nil
}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type execProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   lockedBuffer
}

func (p *execProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *execProcess) Wait() error           { return p.cmd.Wait() }
func (p *execProcess) Output() []byte        { return p.out.Bytes() }

// lockedBuffer collects ffmpeg output written from exec's copy goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

// exitCode extracts the process exit code from err, or -1 when the process
// did not exit normally.
func exitCode(err error) int {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}
