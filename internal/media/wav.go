package media

import (
	"encoding/binary"
	"fmt"
)

// waveform is decoded 16-bit PCM with its framing metadata.
type waveform struct {
	sampleRate int
	channels   int
	data       []byte // interleaved little-endian int16 samples
}

// decodeWAV walks the RIFF chunk list and extracts the fmt and data chunks.
// Only uncompressed 16-bit PCM is accepted.
func decodeWAV(raw []byte) (*waveform, error) {
	if len(raw) < 12 {
		return nil, &DecodeError{Reason: "file too short for a RIFF header"}
	}
	if string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, &DecodeError{Reason: "not a RIFF/WAVE file"}
	}

	var (
		wave    waveform
		haveFmt bool
		bits    int
	)

	offset := 12
	for offset+8 <= len(raw) {
		chunkID := string(raw[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(raw[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(raw) {
			return nil, &DecodeError{Reason: fmt.Sprintf("chunk %q overruns file", chunkID)}
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, &DecodeError{Reason: "fmt chunk too short"}
			}
			audioFormat := int(binary.LittleEndian.Uint16(raw[body : body+2]))
			if audioFormat != 1 {
				return nil, &DecodeError{Reason: fmt.Sprintf("audio format %d is not PCM", audioFormat)}
			}
			wave.channels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			wave.sampleRate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(raw[body+14 : body+16]))
			haveFmt = true
		case "data":
			wave.data = raw[body : body+chunkSize]
		}

		// Chunks are word-aligned.
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if !haveFmt {
		return nil, &DecodeError{Reason: "missing fmt chunk"}
	}
	if wave.data == nil {
		return nil, &DecodeError{Reason: "missing data chunk"}
	}
	if bits != 16 {
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported bit depth %d", bits)}
	}
	if wave.channels < 1 {
		return nil, &DecodeError{Reason: "channel count is zero"}
	}
	if wave.sampleRate <= 0 {
		return nil, &DecodeError{Reason: "sample rate is zero"}
	}
	return &wave, nil
}

// downmix folds interleaved multi-channel PCM into a single channel by
// averaging each frame. Mono input is returned as-is.
func (w *waveform) downmix() *waveform {
	if w.channels == 1 {
		return w
	}

	frameSize := w.channels * 2
	frames := len(w.data) / frameSize
	mono := make([]byte, frames*2)

	for f := 0; f < frames; f++ {
		var sum int
		for ch := 0; ch < w.channels; ch++ {
			off := f*frameSize + ch*2
			sum += int(int16(binary.LittleEndian.Uint16(w.data[off : off+2])))
		}
		binary.LittleEndian.PutUint16(mono[f*2:f*2+2], uint16(int16(sum/w.channels)))
	}

	return &waveform{sampleRate: w.sampleRate, channels: 1, data: mono}
}

// encodeWAV writes a canonical 44-byte header followed by the PCM data.
func encodeWAV(w *waveform) []byte {
	blockAlign := w.channels * 2
	byteRate := w.sampleRate * blockAlign
	out := make([]byte, 44+len(w.data))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(w.data)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(w.channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(w.data)))
	copy(out[44:], w.data)

	return out
}

// Duration reports the playback length in seconds of normalized WAV bytes.
func Duration(wav []byte) (float64, error) {
	w, err := decodeWAV(wav)
	if err != nil {
		return 0, err
	}
	bytesPerSecond := float64(w.sampleRate * w.channels * 2)
	return float64(len(w.data)) / bytesPerSecond, nil
}
