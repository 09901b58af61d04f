// Package encoder drives ffmpeg/ffprobe subprocesses for the four
// derivation profiles. The orchestrating process never does the transcoding
// work itself; it supervises the subprocess and converts its progress stream
// into fractional percents.
package encoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/framelab/media-service/internal/model"
)

// scaleFit bounds both video derivations to 1280x720 without distorting
// the aspect ratio.
const scaleFit = "scale=w=1280:h=720:force_original_aspect_ratio=decrease"

// FFmpeg runs encode and probe subprocesses.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

func New(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Request describes one derivation run.
type Request struct {
	Source   string
	Output   string
	Kind     model.TaskKind
	Duration float64 // probed source duration, scales the progress stream

	// OnProgress receives percents as the encoder reports them. Readings are
	// raw: only approximately monotonic, occasionally out of range. The
	// progress store owns clamping.
	OnProgress func(percent float64)
}

// buildArgs maps a task kind to its ffmpeg argument list.
//
//	thumbSmall  single frame at 50% duration, 320x240 jpeg
//	thumbLarge  single frame at 50% duration, 1920x1080 jpeg
//	mp4         h264 + aac 128k, max 720p (the broadly compatible fallback)
//	webm        vp9 near-CBR at 1000k, max 720p, single thread,
//	            global headers forced on for picky WebM consumers
func buildArgs(req Request) []string {
	switch req.Kind {
	case model.TaskThumbSmall:
		return thumbnailArgs(req, "320:240")
	case model.TaskThumbLarge:
		return thumbnailArgs(req, "1920:1080")
	case model.TaskMP4:
		return []string{
			"-y",
			"-i", req.Source,
			"-c:v", "libx264",
			"-c:a", "aac",
			"-b:a", "128k",
			"-vf", scaleFit,
			"-movflags", "+faststart",
			"-progress", "pipe:1",
			"-nostats",
			req.Output,
		}
	case model.TaskWebM:
		return []string{
			"-y",
			"-i", req.Source,
			"-c:v", "libvpx-vp9",
			"-b:v", "1000k",
			"-minrate", "1000k",
			"-maxrate", "1000k",
			"-threads", "1",
			"-flags", "+global_header",
			"-vf", scaleFit,
			"-progress", "pipe:1",
			"-nostats",
			req.Output,
		}
	}
	return nil
}

func thumbnailArgs(req Request, size string) []string {
	return []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", req.Duration/2),
		"-i", req.Source,
		"-frames:v", "1",
		"-vf", "scale=" + size,
		"-update", "1",
		req.Output,
	}
}

// Encode runs one derivation to completion. The subprocess is killed when
// the context is canceled; the partial output file is the caller's to remove.
func (f *FFmpeg) Encode(ctx context.Context, req Request) error {
	args := buildArgs(req)
	if args == nil {
		return fmt.Errorf("unknown task kind %q", req.Kind)
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	scanProgress(stdout, req.Duration, req.OnProgress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg %s: %w - %s", req.Kind, err, stderrTail(&stderr))
	}

	if req.OnProgress != nil {
		req.OnProgress(100)
	}
	return nil
}

// scanProgress converts ffmpeg's -progress key=value stream into percents.
// out_time_ms is reported in microseconds despite the name. Emissions are
// throttled to whole-percent steps.
func scanProgress(r io.Reader, duration float64, onProgress func(float64)) {
	scanner := bufio.NewScanner(r)
	var last float64 = -1

	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}

		switch key {
		case "out_time_ms":
			if duration <= 0 || onProgress == nil {
				continue
			}
			us, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			percent := us / 1e6 / duration * 100
			if percent-last >= 1 {
				last = percent
				onProgress(percent)
			}
		case "progress":
			if value == "end" && onProgress != nil {
				onProgress(100)
				return
			}
		}
	}
}

// stderrTail keeps error messages readable: ffmpeg is chatty, only the last
// lines carry the failure.
func stderrTail(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}
