package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FFmpegNormalizer demuxes video containers and decodes non-WAV audio by
// shelling out to ffmpeg, then runs the shared mono fold. Intermediate files
// live in a per-call temp directory that is removed on every exit path.
type FFmpegNormalizer struct {
	binary string
}

func NewFFmpegNormalizer(binary string) *FFmpegNormalizer {
	return &FFmpegNormalizer{binary: binary}
}

func (n *FFmpegNormalizer) Normalize(ctx context.Context, raw []byte, ext string) ([]byte, error) {
	ext = cleanExt(ext)

	// WAV uploads never need ffmpeg.
	if ext == "wav" || ext == "" {
		return foldToMonoWAV(raw)
	}

	tmpDir, err := os.MkdirTemp("", "normalize-*")
	if err != nil {
		return nil, fmt.Errorf("media: temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inPath := filepath.Join(tmpDir, "input."+ext)
	if err := os.WriteFile(inPath, raw, 0600); err != nil {
		return nil, fmt.Errorf("media: stage input: %w", err)
	}

	// Decode to 44.1kHz 16-bit WAV with the native channel count; channel
	// folding stays in Go so mono output is identical across both
	// normalizer implementations.
	outPath := filepath.Join(tmpDir, "decoded.wav")
	wav, err := n.run(ctx, inPath, outPath)
	if err != nil {
		return nil, err
	}
	return foldToMonoWAV(wav)
}

func (n *FFmpegNormalizer) run(ctx context.Context, inPath, outPath string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, n.binary,
		"-y", "-i", inPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "44100",
		"-f", "wav",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		detail := lastLine(stderr.String())
		return nil, &DecodeError{Reason: fmt.Sprintf("ffmpeg: %v: %s", err, detail)}
	}

	wav, err := os.ReadFile(outPath)
	if err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("ffmpeg produced no output: %v", err)}
	}
	return wav, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
