package attachment_service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FFmpegCompressor re-encodes videos with an ffmpeg binary.
type FFmpegCompressor struct {
	Binary    string // default "ffmpeg"
	OutputDir string // default os.TempDir()
	CRF       int    // default 28
}

// NewFFmpegCompressor returns a compressor if an ffmpeg binary is on PATH.
func NewFFmpegCompressor(outputDir string) (*FFmpegCompressor, bool) {
	binary, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, false
	}
	return &FFmpegCompressor{Binary: binary, OutputDir: outputDir}, true
}

func (c *FFmpegCompressor) Compress(ctx context.Context, attachment PendingAttachment) (string, error) {
	binary := c.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	dir := c.OutputDir
	if dir == "" {
		dir = os.TempDir()
	}
	crf := c.CRF
	if crf <= 0 {
		crf = 28
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	out := filepath.Join(dir, "compressed-"+uuid.NewString()+".mp4")
	cmd := exec.CommandContext(ctx, binary,
		"-y", "-i", attachment.Path(),
		"-vcodec", "libx264", "-crf", fmt.Sprint(crf), "-preset", "veryfast",
		"-vf", "scale='min(1280,iw)':-2",
		"-acodec", "aac", "-b:a", "96k",
		"-movflags", "+faststart",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("ffmpeg failed: %w: %s", err, lastLine(stderr.String()))
	}
	log.Printf("🎞️ ffmpeg wrote %s", out)
	return out, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
