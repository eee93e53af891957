// Package decoder turns an uploaded audio file into the mono, 16kHz,
// float32 sample buffer the language gate and ASR engine expect. It is
// grounded on the original service's audio_io.load_audio_mono_16k: a WAV
// fast path covering 8/16/24-bit PCM, with channel downmixing and a naive
// linear resample to 16kHz.
package decoder

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cisco7507/langid-mr/internal/apperrors"
)

const targetSampleRate = 16000

// Decoder turns raw file bytes into a mono float32 sample buffer.
type Decoder interface {
	Decode(data []byte) ([]float32, error)
}

// WavDecoder implements Decoder for canonical PCM WAV files.
type WavDecoder struct{}

func NewWavDecoder() *WavDecoder { return &WavDecoder{} }

type waveFormat struct {
	numChannels   uint16
	sampleRate    uint32
	bitsPerSample uint16
	dataOffset    int
	dataSize      int
}

// Decode parses the RIFF/WAVE container, downmixes to mono, normalizes to
// [-1, 1] float32, and naively resamples to 16kHz.
func (d *WavDecoder) Decode(data []byte) ([]float32, error) {
	format, err := parseWavHeader(data)
	if err != nil {
		return nil, err
	}

	raw := data[format.dataOffset : format.dataOffset+format.dataSize]
	samples, err := pcmToFloat32(raw, format.bitsPerSample)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, apperrors.NewUploadError("audio file is empty")
	}

	mono := downmix(samples, int(format.numChannels))
	return resampleLinear(mono, int(format.sampleRate), targetSampleRate), nil
}

func parseWavHeader(data []byte) (*waveFormat, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, wrapInvalid("not a RIFF/WAVE file")
	}

	var format waveFormat
	offset := 12
	haveFmt := false
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, wrapInvalid("corrupt fmt chunk")
			}
			format.numChannels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			format.sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			format.bitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			format.dataOffset = body
			format.dataSize = chunkSize
			// data is conventionally the last chunk we care about
			if haveFmt {
				return &format, validateFormat(&format)
			}
		}

		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++ // chunks are word-aligned
		}
	}

	if !haveFmt || format.dataSize == 0 {
		return nil, wrapInvalid("missing fmt or data chunk")
	}
	return &format, validateFormat(&format)
}

func validateFormat(f *waveFormat) error {
	if f.numChannels == 0 {
		return wrapInvalid("zero channel count")
	}
	switch f.bitsPerSample {
	case 8, 16, 24:
	default:
		return wrapInvalid(fmt.Sprintf("unsupported sample width: %d", f.bitsPerSample))
	}
	return nil
}

func pcmToFloat32(raw []byte, bitsPerSample uint16) ([]float32, error) {
	switch bitsPerSample {
	case 16:
		if len(raw)%2 != 0 {
			return nil, wrapInvalid("corrupt 16-bit PCM: unexpected byte length")
		}
		out := make([]float32, len(raw)/2)
		for i := range out {
			v := int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
			out[i] = float32(v) / 32768.0
		}
		return out, nil
	case 8:
		out := make([]float32, len(raw))
		for i, b := range raw {
			out[i] = (float32(b) - 128.0) / 128.0
		}
		return out, nil
	case 24:
		if len(raw)%3 != 0 {
			return nil, wrapInvalid("corrupt 24-bit PCM: unexpected byte length")
		}
		out := make([]float32, len(raw)/3)
		for i := range out {
			b0, b1, b2 := raw[i*3], raw[i*3+1], raw[i*3+2]
			v := int32(b0) | int32(b1)<<8 | int32(b2)<<16
			if v&(1<<23) != 0 {
				v -= 1 << 24
			}
			out[i] = float32(v) / float32(1<<23)
		}
		return out, nil
	default:
		return nil, wrapInvalid(fmt.Sprintf("unsupported sample width: %d", bitsPerSample))
	}
}

func downmix(samples []float32, numChannels int) []float32 {
	if numChannels <= 1 {
		return samples
	}
	frames := len(samples) / numChannels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < numChannels; c++ {
			sum += samples[i*numChannels+c]
		}
		out[i] = sum / float32(numChannels)
	}
	return out
}

// resampleLinear mirrors the original's np.interp-based naive resample: it
// is not a proper band-limited resampler, just cheap and good enough for
// language-detection probes.
func resampleLinear(samples []float32, sourceRate, targetRate int) []float32 {
	if sourceRate == targetRate || sourceRate <= 0 || len(samples) == 0 {
		return samples
	}

	targetLen := int(math.Ceil(float64(len(samples)) * float64(targetRate) / float64(sourceRate)))
	if targetLen <= 0 {
		return nil
	}

	out := make([]float32, targetLen)
	lastIdx := len(samples) - 1
	for i := 0; i < targetLen; i++ {
		// position in [0,1), mirroring np.linspace(..., endpoint=False)
		srcPos := float64(i) / float64(targetLen) * float64(lastIdx+1)
		lo := int(math.Floor(srcPos))
		if lo > lastIdx {
			lo = lastIdx
		}
		hi := lo + 1
		if hi > lastIdx {
			hi = lastIdx
		}
		frac := srcPos - float64(lo)
		out[i] = samples[lo] + float32(frac)*(samples[hi]-samples[lo])
	}
	return out
}

func wrapInvalid(reason string) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidAudio, reason)
}
