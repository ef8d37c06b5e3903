package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/safesite-labs/sitelog-intake/internal/common"
	"github.com/safesite-labs/sitelog-intake/internal/media"
)

var compressCommand = &cobra.Command{
	Use:   "compress <file>",
	Short: "Produce a bounded copy of an evidence photo or video",
	Long: `Runs the evidence media through ffmpeg: videos are re-encoded as bounded
H.264 mp4, images are rescaled and re-encoded as JPEG. The bounded file is
what gets attached to a record.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompressCmd,
}

func init() {
	rootCmd.AddCommand(compressCommand)
}

func runCompressCmd(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := common.LoadConfig()

	st, err := os.Stat(args[0])
	if err != nil {
		return err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(args[0]))
	if mimeType == "" {
		return fmt.Errorf("cannot determine media type of %s", args[0])
	}

	c := media.NewCompressor(media.Config{
		FFmpeg:    cfg.Media.FFmpeg,
		OutputDir: cfg.Media.OutputDir,
	}, logger)
	out, err := c.Compress(cmd.Context(), media.Media{Path: args[0], MIMEType: mimeType, Size: st.Size()})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes, %s)\n", out.Path, out.Size, out.MIMEType)
	return nil
}
