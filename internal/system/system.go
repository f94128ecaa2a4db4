package system

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// InitResourceLimits raises the open file limit toward want. Concurrent jobs
// each hold subprocess pipes and artifact files.
func InitResourceLimits(logger *slog.Logger, want uint64) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("could not read open file limit", "error", err)
		return
	}
	if rLimit.Cur >= want {
		return
	}

	rLimit.Cur = want
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("could not raise open file limit", "error", err)
		return
	}
	logger.Debug("open file limit raised", "limit", rLimit.Cur)
}

// FindLatest returns the most recently modified file in dir whose extension
// matches one of exts (case-insensitive).
func FindLatest(dir string, exts ...string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if latestFile == "" || info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files in %s", strings.Join(exts, "/"), dir)
	}
	return latestFile, nil
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// Hardware encoders in order of preference; libx264 is the fallback.
var preferredEncoders = []string{"h264_videotoolbox", "h264_nvenc"}

// GetBestH264Encoder asks ffmpeg which encoders it was built with and picks
// the first hardware H.264 encoder available.
func GetBestH264Encoder(ctx context.Context, ffmpeg string) string {
	out, err := exec.CommandContext(ctx, ffmpeg, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	for _, enc := range preferredEncoders {
		if strings.Contains(string(out), enc) {
			return enc
		}
	}
	return "libx264"
}

// LookPath reports whether a binary can be found, for startup checks.
func LookPath(bin string) error {
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("%s not found: %w", bin, err)
	}
	return nil
}
