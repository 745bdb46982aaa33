// Package media normalizes uploaded audio/video into the canonical
// single-channel 16-bit WAV representation the recognition service consumes.
package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
)

// ErrUnsupportedFormat is returned when the uploaded container cannot be
// decoded by the selected normalizer.
var ErrUnsupportedFormat = errors.New("media: unsupported format")

// DecodeError indicates bytes that claimed a decodable format but could not
// be parsed as one.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "media: decode failed: " + e.Reason
}

// videoExtensions are the containers that require a demux step before audio
// decoding.
var videoExtensions = map[string]bool{
	"mp4": true,
	"mov": true,
	"mkv": true,
	"avi": true,
}

// Normalizer converts an uploaded payload into mono WAV bytes. Input bytes
// are never mutated and no state is carried between calls.
type Normalizer interface {
	Normalize(ctx context.Context, raw []byte, ext string) ([]byte, error)
}

// NewNormalizer selects the normalizer implementation by probing for ffmpeg.
// Without ffmpeg, only WAV uploads are accepted and video uploads fail with
// ErrUnsupportedFormat instead of being misread as audio.
func NewNormalizer() Normalizer {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		log.Printf("ffmpeg not found, media normalizer is audio-only (WAV uploads)")
		return &AudioNormalizer{}
	}
	log.Printf("Media normalizer using ffmpeg at %s", path)
	return &FFmpegNormalizer{binary: path}
}

// AudioNormalizer handles WAV input without external tooling.
type AudioNormalizer struct{}

func (n *AudioNormalizer) Normalize(ctx context.Context, raw []byte, ext string) ([]byte, error) {
	ext = cleanExt(ext)
	if videoExtensions[ext] {
		return nil, fmt.Errorf("%w: video container %q requires ffmpeg", ErrUnsupportedFormat, ext)
	}
	if ext != "wav" && ext != "" {
		return nil, fmt.Errorf("%w: audio container %q requires ffmpeg", ErrUnsupportedFormat, ext)
	}
	return foldToMonoWAV(raw)
}

func cleanExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// foldToMonoWAV decodes WAV bytes, folds all channels down to one, and
// re-encodes. Mono input round-trips with its sample data unchanged.
func foldToMonoWAV(raw []byte) ([]byte, error) {
	wave, err := decodeWAV(raw)
	if err != nil {
		return nil, err
	}
	mono := wave.downmix()
	return encodeWAV(mono), nil
}
