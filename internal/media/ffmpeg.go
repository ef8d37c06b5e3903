package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config for the ffmpeg-backed compressor.
type Config struct {
	FFmpeg    string // binary name or absolute path; if empty -> "ffmpeg"
	OutputDir string // where bounded files are written; default "./tmp"

	CRF      int // video quality, default 28
	MaxWidth int // output is scaled down to this width, default 1280
	Quality  int // image quality (qscale), default 4
}

// Compressor shells out to ffmpeg to produce bounded media.
type Compressor struct {
	cfg    Config
	logger *slog.Logger
}

var _ Preprocessor = (*Compressor)(nil)

func NewCompressor(cfg Config, logger *slog.Logger) *Compressor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./tmp"
	}
	if cfg.CRF <= 0 {
		cfg.CRF = 28
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 1280
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 4
	}
	return &Compressor{cfg: cfg, logger: logger}
}

// Compress produces a bounded representation of raw media. Video goes
// through H.264 at a fixed CRF; images are rescaled and re-encoded as JPEG.
func (c *Compressor) Compress(ctx context.Context, raw Media) (Media, error) {
	start := time.Now()
	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return Media{}, fmt.Errorf("create output dir: %w", err)
	}

	var out Media
	out.Path, out.MIMEType = c.outputFor(raw)

	var args []string
	scale := fmt.Sprintf("scale='min(%d,iw)':-2", c.cfg.MaxWidth)
	if strings.HasPrefix(raw.MIMEType, "video/") {
		args = []string{
			"-y", "-i", raw.Path,
			"-vf", scale,
			"-c:v", "libx264", "-crf", strconv.Itoa(c.cfg.CRF),
			"-preset", "fast",
			"-c:a", "aac", "-b:a", "96k",
			out.Path,
		}
	} else {
		args = []string{
			"-y", "-i", raw.Path,
			"-vf", scale,
			"-qscale:v", strconv.Itoa(c.cfg.Quality),
			out.Path,
		}
	}

	cmd := exec.CommandContext(ctx, c.cfg.FFmpeg, args...)
	if b, err := cmd.CombinedOutput(); err != nil {
		c.logger.Error("media.compress_failed", "input", raw.Path, "error", err, "output", string(b))
		return Media{}, fmt.Errorf("ffmpeg: %w", err)
	}

	st, err := os.Stat(out.Path)
	if err != nil {
		return Media{}, fmt.Errorf("stat output: %w", err)
	}
	out.Size = st.Size()

	c.logger.Info("media.compress_ok",
		"input", raw.Path, "output", out.Path,
		"in_bytes", raw.Size, "out_bytes", out.Size,
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (c *Compressor) outputFor(raw Media) (path, mimeType string) {
	base := strings.TrimSuffix(filepath.Base(raw.Path), filepath.Ext(raw.Path))
	if strings.HasPrefix(raw.MIMEType, "video/") {
		return filepath.Join(c.cfg.OutputDir, base+".bounded.mp4"), "video/mp4"
	}
	return filepath.Join(c.cfg.OutputDir, base+".bounded.jpg"), "image/jpeg"
}
