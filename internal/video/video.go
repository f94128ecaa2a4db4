// Package video publishes the engine's rendered file to the caller's path,
// either as-is or transcoded through ffmpeg.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Params control a transcode.
type Params struct {
	Filter    string // -vf chain, may be empty
	FPS       int
	Encoder   string
	Quality   int
	AudioPath string // optional soundtrack, cut to the video length
}

// Publisher moves a finished render to its destination.
type Publisher interface {
	Publish(ctx context.Context, src, dst string, p Params) error
}

// CopyPublisher renames the file, falling back to a copy across devices.
type CopyPublisher struct{}

func (CopyPublisher) Publish(_ context.Context, src, dst string, _ Params) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	return copyFile(src, dst)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".publish-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// FFmpegPublisher re-encodes the render with ffmpeg.
type FFmpegPublisher struct {
	Binary string
}

func (e *FFmpegPublisher) Publish(ctx context.Context, src, dst string, p Params) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	bin := e.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin, BuildArgs(src, dst, p)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg error: %w, output: %s", err, tail(out.Bytes(), 2048))
	}
	if _, err := os.Stat(dst); err != nil {
		return errors.New("ffmpeg produced no output file")
	}
	return nil
}

// BuildArgs assembles the ffmpeg command line.
func BuildArgs(src, dst string, p Params) []string {
	args := []string{"-y", "-i", src}
	if p.AudioPath != "" {
		args = append(args, "-i", p.AudioPath)
	}
	if p.Filter != "" {
		args = append(args, "-vf", p.Filter)
	}
	if p.FPS > 0 {
		args = append(args, "-r", strconv.Itoa(p.FPS))
	}
	if p.AudioPath != "" {
		args = append(args, "-map", "0:v", "-map", "1:a", "-c:a", "aac", "-shortest")
	}

	encoder := p.Encoder
	if encoder == "" {
		encoder = "libx264"
	}
	args = append(args, "-c:v", encoder, "-pix_fmt", "yuv420p")
	args = append(args, qualityArgs(encoder, p.Quality)...)
	return append(args, dst)
}

// qualityArgs maps one quality number onto each encoder's own knob.
func qualityArgs(encoder string, quality int) []string {
	if quality <= 0 {
		return nil
	}
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox does not take -q:v on every version, use bitrate
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", strconv.Itoa(quality)}
	default: // libx264
		return []string{"-crf", strconv.Itoa(quality), "-preset", "medium"}
	}
}

func tail(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
