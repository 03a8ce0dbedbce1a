package whispercpp

import (
	"encoding/binary"
	"fmt"
)

// sampleRate is the only input rate the model accepts. The audio extractor
// produces this format, anything else is a caller bug.
const sampleRate = 16000

// decodeWAV converts a 16 kHz mono PCM16 WAV file into the float32 samples
// whisper.cpp expects. Chunks other than fmt and data are skipped.
func decodeWAV(data []byte) ([]float32, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF WAVE file")
	}

	var pcm []byte
	haveFmt := false
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(data) {
			return nil, fmt.Errorf("truncated %s chunk", chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			channels := binary.LittleEndian.Uint16(data[body+2 : body+4])
			rate := binary.LittleEndian.Uint32(data[body+4 : body+8])
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 || bits != 16 {
				return nil, fmt.Errorf("expected 16-bit PCM, got format %d bits %d", format, bits)
			}
			if channels != 1 {
				return nil, fmt.Errorf("expected mono audio, got %d channels", channels)
			}
			if rate != sampleRate {
				return nil, fmt.Errorf("expected %d Hz audio, got %d Hz", sampleRate, rate)
			}
			haveFmt = true
		case "data":
			pcm = data[body : body+chunkSize]
		}

		// Chunks are word aligned.
		if chunkSize%2 == 1 {
			chunkSize++
		}
		offset = body + chunkSize
	}

	if !haveFmt {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if pcm == nil {
		return nil, fmt.Errorf("missing data chunk")
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("odd PCM data length")
	}

	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[2*i:2*i+2]))) / 32768.0
	}
	return samples, nil
}
