package app

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"video_ingest_service/internal/ingest/domain"
)

// CommandRunner runs an external media tool and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

var lookPath = exec.LookPath

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s: %w, output: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// CheckMediaTools 啟動時確認 ffmpeg / ffprobe 存在，缺少任何一個都不能處理影片
func CheckMediaTools(bins ...string) error {
	for _, bin := range bins {
		if bin == "" {
			continue
		}
		if _, err := lookPath(bin); err != nil {
			return fmt.Errorf("%s: %w", bin, domain.ErrMediaToolMissing)
		}
	}
	return nil
}
