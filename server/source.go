package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/rs/zerolog"
)

// FrameSource produces raw frames for a stream.
type FrameSource interface {
	// Run emits frames until ctx is done or the source fails.
	Run(ctx context.Context, stream *Stream, emit func([]byte)) error
}

// FFmpegSource converts an RTSP stream to raw BGR24 frames with FFmpeg.
type FFmpegSource struct {
	Log zerolog.Logger
}

// Available reports whether FFmpeg can be executed.
func (s FFmpegSource) Available() error {
	if err := exec.Command("ffmpeg", "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg is not installed or not in PATH: %w", err)
	}
	return nil
}

// Run implements FrameSource.
func (s FFmpegSource) Run(ctx context.Context, stream *Stream, emit func([]byte)) error {
	args := []string{
		"-rtsp_transport", "tcp",
		"-i", stream.rtspURL,
		"-vf", fmt.Sprintf("scale=%d:%d", stream.width, stream.height),
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-an",
		"-",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start FFmpeg: %w", err)
	}
	defer cmd.Wait()

	log := s.Log.With().Str("stream", stream.streamID).Logger()
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Trace().Str("ffmpeg", scanner.Text()).Send()
		}
	}()

	// BGR24 = 3 bytes per pixel
	frameSize := stream.width * stream.height * 3
	frameData := make([]byte, frameSize)

	for {
		select {
		case <-ctx.Done():
			cmd.Process.Kill()
			return nil
		default:
		}

		if _, err := io.ReadFull(stdout, frameData); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		frame := make([]byte, len(frameData))
		copy(frame, frameData)
		emit(frame)
	}
}
