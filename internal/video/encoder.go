package video

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ivlev/timeline2video/internal/config"
)

type State int

const (
	StateIdle State = iota
	StateEncoding
	StateFinished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEncoding:
		return "encoding"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type Options struct {
	Width   int
	Height  int
	FPS     float64
	Encoder config.EncoderParams
	FFmpeg  string
	Logger  zerolog.Logger
}

// Encoder streams raw RGBA frames into one ffmpeg process. At most one
// frame write is outstanding at any time, so the renderer can prepare the
// next frame while ffmpeg drains the current one.
type Encoder struct {
	opts   Options
	runner Runner
	log    zerolog.Logger

	mu       sync.Mutex
	state    State
	proc     Process
	stdin    io.WriteCloser
	inFlight bool
	err      error
	frames   int
}

func NewEncoder(opts Options, runner Runner) *Encoder {
	if runner == nil {
		runner = ExecRunner{}
	}
	if opts.FFmpeg == "" {
		opts.FFmpeg = "ffmpeg"
	}
	return &Encoder{opts: opts, runner: runner, log: opts.Logger}
}

func (e *Encoder) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Frames is the number of frames accepted by ffmpeg so far.
func (e *Encoder) Frames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

func (e *Encoder) frameSize() int {
	return e.opts.Width * e.opts.Height * 4
}

// Args builds the ffmpeg command line for encoding to outputPath.
func (e *Encoder) Args(outputPath string) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", e.opts.Width, e.opts.Height),
		"-framerate", strconv.FormatFloat(e.opts.FPS, 'f', -1, 64),
		"-i", "-",
	}
	// yuv420p needs even dimensions
	if e.opts.Width%2 != 0 || e.opts.Height%2 != 0 {
		args = append(args, "-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2")
	}
	args = append(args, e.opts.Encoder.Args()...)
	args = append(args, "-pix_fmt", "yuv420p", outputPath)
	return args
}

// Start launches ffmpeg. Legal only from the idle state.
func (e *Encoder) Start(ctx context.Context, outputPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return fmt.Errorf("%w: start while %s", ErrState, e.state)
	}

	args := e.Args(outputPath)
	e.log.Debug().Str("cmd", e.opts.FFmpeg+" "+strings.Join(args, " ")).Msg("starting encoder")

	proc, err := e.runner.Start(ctx, e.opts.FFmpeg, args...)
	if err != nil {
		e.state = StateFailed
		e.err = fmt.Errorf("ffmpeg start error: %w", err)
		return e.err
	}
	e.proc = proc
	e.stdin = proc.Stdin()
	e.state = StateEncoding
	return nil
}

// Write hands one frame to ffmpeg. The returned channel yields exactly one
// value once the pipe has accepted the whole frame, or an error. The frame
// must not be modified until then. Writing again before the previous
// channel resolved fails with ErrWriteInFlight.
func (e *Encoder) Write(frame []byte) <-chan error {
	done := make(chan error, 1)

	e.mu.Lock()
	switch {
	case e.state != StateEncoding:
		e.mu.Unlock()
		done <- fmt.Errorf("%w: write while %s", ErrState, e.state)
		close(done)
		return done
	case e.inFlight:
		e.mu.Unlock()
		done <- ErrWriteInFlight
		close(done)
		return done
	case len(frame) != e.frameSize():
		e.mu.Unlock()
		done <- fmt.Errorf("frame is %d bytes, expected %d", len(frame), e.frameSize())
		close(done)
		return done
	}
	e.inFlight = true
	stdin := e.stdin
	e.mu.Unlock()

	go func() {
		_, err := stdin.Write(frame)

		e.mu.Lock()
		e.inFlight = false
		if err != nil {
			err = fmt.Errorf("write frame %d: %w", e.frames, err)
			e.state = StateFailed
			e.err = err
		} else {
			e.frames++
		}
		e.mu.Unlock()

		done <- err
		close(done)
	}()
	return done
}

// Finish closes ffmpeg's input and waits for it to exit. A non-zero exit is
// returned as *EncodingError.
func (e *Encoder) Finish(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateEncoding {
		st := e.state
		e.mu.Unlock()
		return fmt.Errorf("%w: finish while %s", ErrState, st)
	}
	if e.inFlight {
		e.mu.Unlock()
		return ErrWriteInFlight
	}
	proc := e.proc
	stdin := e.stdin
	e.mu.Unlock()

	stdin.Close()

	waitErr := make(chan error, 1)
	go func() { waitErr <- proc.Wait() }()

	var err error
	select {
	case err = <-waitErr:
	case <-ctx.Done():
		err = ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = StateFailed
		if ctx.Err() != nil {
			e.err = err
			return err
		}
		e.err = &EncodingError{ExitCode: exitCode(err), Output: string(proc.Output())}
		return e.err
	}
	e.state = StateFinished
	e.log.Debug().Int("frames", e.frames).Msg("encoder finished")
	return nil
}

// Abort stops an encoding run after a failure elsewhere. ffmpeg sees EOF
// and exits; its result is ignored.
func (e *Encoder) Abort() {
	e.mu.Lock()
	if e.state != StateEncoding {
		e.mu.Unlock()
		return
	}
	e.state = StateFailed
	proc := e.proc
	stdin := e.stdin
	e.mu.Unlock()

	stdin.Close()
	proc.Wait()
}
