package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// CommandRunner executes an external tool and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// defaultCommandRunner runs the command and folds stderr into the error.
func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 800 {
			msg = "..." + msg[len(msg)-800:]
		}
		return out, fmt.Errorf("%w: %s", err, msg)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// FFmpegService
// ---------------------------------------------------------------------------

type FFmpegService struct {
	run     CommandRunner
	timeout time.Duration
}

// NewFFmpegService creates the encoder. timeout bounds every single ffmpeg
// or ffprobe invocation; zero means no per-call limit.
func NewFFmpegService(timeout time.Duration) *FFmpegService {
	return &FFmpegService{
		run:     defaultCommandRunner,
		timeout: timeout,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (s *FFmpegService) WithCommandRunner(r CommandRunner) *FFmpegService {
	if r != nil {
		s.run = r
	}
	return s
}

func (s *FFmpegService) exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.run(ctx, name, args...)
}

// EncodeStill renders a still image held for the whole narration. The image
// loops for ceil(durationSec) seconds and -shortest ends the clip with the
// audio, which is stream-copied untouched.
func (s *FFmpegService) EncodeStill(ctx context.Context, imagePath, audioPath, outputPath string, durationSec float64, width, height, fps int) error {
	hold := int(math.Ceil(durationSec))
	if hold < 1 {
		hold = 1
	}

	vf := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1",
		width, height, width, height,
	)

	args := []string{
		"-loop", "1",
		"-framerate", strconv.Itoa(fps),
		"-t", strconv.Itoa(hold),
		"-i", imagePath,
		"-i", audioPath,
		"-vf", vf,
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-c:a", "copy",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(fps),
		"-shortest",
		"-y",
		outputPath,
	}

	log.Printf("[FFmpeg] Encoding still clip (%dx%d@%d, hold=%ds)", width, height, fps, hold)

	if _, err := s.exec(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("ffmpeg encode still failed: %w", err)
	}
	return nil
}

// Concat joins clips with the concat demuxer and stream copy. listPath is
// written by the caller's workspace so concurrent jobs never share it. The
// demuxer resolves relative entries against the list's directory, so every
// entry is written as an absolute path.
func (s *FFmpegService) Concat(ctx context.Context, clipPaths []string, listPath, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	var list strings.Builder
	for _, path := range clipPaths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("clip unreadable: %w", err)
		}
		if info.Size() == 0 {
			return fmt.Errorf("clip %s is empty", path)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve clip path: %w", err)
		}
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}

	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		outputPath,
	}

	if _, err := s.exec(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("ffmpeg concatenate failed: %w", err)
	}
	return nil
}

// MixAudio lays musicPath under the narration of videoPath at the given gain.
// The mix ends with the shorter input and the video stream is copied.
func (s *FFmpegService) MixAudio(ctx context.Context, videoPath, musicPath, outputPath string, volume float64) error {
	if _, err := os.Stat(musicPath); err != nil {
		return fmt.Errorf("background music unavailable: %w", err)
	}

	filter := fmt.Sprintf(
		"[1:a]volume=%.2f[music];[0:a][music]amix=inputs=2:duration=shortest:dropout_transition=2[aout]",
		volume,
	)

	args := []string{
		"-i", videoPath,
		"-i", musicPath,
		"-filter_complex", filter,
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-y",
		outputPath,
	}

	log.Printf("[FFmpeg] Mixing background music from %s (volume=%.2f)", musicPath, volume)

	if _, err := s.exec(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("ffmpeg mix background music failed: %w", err)
	}
	return nil
}

// ProbeDuration returns the container duration of a media file in seconds.
func (s *FFmpegService) ProbeDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	out, err := s.exec(ctx, "ffprobe", args...)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %.3f for %s", d, path)
	}
	return d, nil
}
