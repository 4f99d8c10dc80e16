package video

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrState is returned for calls that are illegal in the encoder's
	// current state.
	ErrState = errors.New("invalid encoder state")
	// ErrWriteInFlight is returned when a frame is written before the
	// previous one was accepted.
	ErrWriteInFlight = errors.New("previous frame write still in flight")
)

// EncodingError reports a failed ffmpeg encode.
type EncodingError struct {
	ExitCode int
	Output   string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("ffmpeg encode exited with code %d: %s", e.ExitCode, tail(e.Output, 10))
}

// MuxError reports a failed audio mix.
type MuxError struct {
	ExitCode int
	Output   string
}

func (e *MuxError) Error() string {
	return fmt.Sprintf("ffmpeg audio mix exited with code %d: %s", e.ExitCode, tail(e.Output, 10))
}

// tail keeps the last n lines of ffmpeg output, which hold the actual error.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
