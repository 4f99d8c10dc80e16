package video

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ivlev/timeline2video/internal/timeline"
)

// Mixer lays audio sources over an encoded video.
type Mixer struct {
	FFmpeg string
	Runner Runner
	Logger zerolog.Logger
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// playLength is how long a source is audible on a timeline of the given
// duration.
func playLength(src timeline.AudioSource, duration float64) float64 {
	l := duration - src.Start
	if src.TrimEnd > 0 && !src.Loop {
		l = math.Min(l, src.TrimEnd-src.TrimStart)
	}
	if src.Limit > 0 {
		l = math.Min(l, src.Limit)
	}
	return math.Max(l, 0)
}

// audible drops sources that never play before the timeline ends.
func audible(sources []timeline.AudioSource, duration float64) []timeline.AudioSource {
	var out []timeline.AudioSource
	for _, src := range sources {
		if playLength(src, duration) > 0 {
			out = append(out, src)
		}
	}
	return out
}

// BuildAudioGraph returns the -filter_complex graph mixing sources, whose
// inputs are numbered from 1 (input 0 is the video). The mix is labelled
// [aout].
func BuildAudioGraph(sources []timeline.AudioSource, duration float64) string {
	var chains []string
	var labels strings.Builder

	for i, src := range sources {
		var f []string
		if src.TrimStart > 0 || src.TrimEnd > 0 {
			trim := "atrim=start=" + ff(src.TrimStart)
			if src.TrimEnd > 0 {
				trim += ":end=" + ff(src.TrimEnd)
			}
			f = append(f, trim, "asetpts=PTS-STARTPTS")
		}
		if src.Loop {
			f = append(f, "aloop=loop=-1:size=2e9")
		}
		length := playLength(src, duration)
		f = append(f, "atrim=duration="+ff(length), "asetpts=PTS-STARTPTS")
		if ms := int64(math.Round(src.Start * 1000)); ms > 0 {
			f = append(f, fmt.Sprintf("adelay=%d:all=1", ms))
		}
		f = append(f, "volume="+ff(src.Volume))
		if src.FadeIn > 0 {
			f = append(f, fmt.Sprintf("afade=t=in:st=%s:d=%s", ff(src.Start), ff(src.FadeIn)))
		}
		if src.FadeOut > 0 {
			st := math.Max(src.Start, src.Start+length-src.FadeOut)
			f = append(f, fmt.Sprintf("afade=t=out:st=%s:d=%s", ff(st), ff(src.FadeOut)))
		}

		label := fmt.Sprintf("[a%d]", i)
		chains = append(chains, fmt.Sprintf("[%d:a]%s%s", i+1, strings.Join(f, ","), label))
		labels.WriteString(label)
	}

	chains = append(chains, fmt.Sprintf("%samix=inputs=%d:duration=longest:normalize=0[aout]", labels.String(), len(sources)))
	return strings.Join(chains, ";")
}

// MixArgs is the ffmpeg command line for MixAudio. Sources that would
// stay silent get neither an input nor a chain.
func MixArgs(videoOnly, final string, sources []timeline.AudioSource, duration float64) []string {
	sources = audible(sources, duration)
	args := []string{"-y", "-i", videoOnly}
	for _, src := range sources {
		args = append(args, "-i", src.LocalPath)
	}
	args = append(args,
		"-filter_complex", BuildAudioGraph(sources, duration),
		"-map", "0:v", "-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac", "-b:a", "192k",
		"-shortest",
		final,
	)
	return args
}

// MixAudio writes final from the video-only file and the audio sources.
// Without audible sources the video is moved into place untouched. The
// video-only file is removed in every case.
func (m *Mixer) MixAudio(ctx context.Context, videoOnly, final string, sources []timeline.AudioSource, duration float64) error {
	defer os.Remove(videoOnly)

	if skipped := len(sources); skipped > 0 {
		sources = audible(sources, duration)
		if skipped -= len(sources); skipped > 0 {
			m.Logger.Debug().Int("skipped", skipped).Msg("audio sources start after the end")
		}
	}
	if len(sources) == 0 {
		return moveFile(videoOnly, final)
	}

	ffmpeg := m.FFmpeg
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	runner := m.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	args := MixArgs(videoOnly, final, sources, duration)
	m.Logger.Debug().Str("cmd", ffmpeg+" "+strings.Join(args, " ")).Int("sources", len(sources)).Msg("mixing audio")

	out, err := runner.Run(ctx, ffmpeg, args...)
	if err != nil {
		os.Remove(final)
		return &MuxError{ExitCode: exitCode(err), Output: string(out)}
	}
	return nil
}

// moveFile renames src to dst, copying when they live on different
// filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

