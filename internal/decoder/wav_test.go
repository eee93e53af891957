package decoder

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cisco7507/langid-mr/internal/apperrors"
)

// buildWav assembles a minimal canonical RIFF/WAVE file from interleaved
// PCM frames already encoded as raw little-endian bytes.
func buildWav(t *testing.T, numChannels int, sampleRate int, bitsPerSample int, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	blockAlign := numChannels * bitsPerSample / 8
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	return buf.Bytes()
}

func TestWavDecoder_Decode_16BitMonoAtTargetRate(t *testing.T) {
	var pcm bytes.Buffer
	for _, v := range []int16{0, 16384, -16384, 32767} {
		binary.Write(&pcm, binary.LittleEndian, v)
	}
	wav := buildWav(t, 1, targetSampleRate, 16, pcm.Bytes())

	d := NewWavDecoder()
	samples, err := d.Decode(wav)
	require.NoError(t, err)
	require.Len(t, samples, 4)
	require.InDelta(t, 0.0, samples[0], 0.001)
	require.InDelta(t, 0.5, samples[1], 0.001)
	require.InDelta(t, -0.5, samples[2], 0.001)
	require.InDelta(t, 1.0, samples[3], 0.001)
}

func TestWavDecoder_Decode_DownmixesStereo(t *testing.T) {
	var pcm bytes.Buffer
	// one stereo frame: left=32767, right=-32768
	binary.Write(&pcm, binary.LittleEndian, int16(32767))
	binary.Write(&pcm, binary.LittleEndian, int16(-32768))
	wav := buildWav(t, 2, targetSampleRate, 16, pcm.Bytes())

	d := NewWavDecoder()
	samples, err := d.Decode(wav)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.InDelta(t, 0.0, samples[0], 0.01)
}

func TestWavDecoder_Decode_ResamplesToTargetRate(t *testing.T) {
	var pcm bytes.Buffer
	for i := 0; i < 8000; i++ {
		binary.Write(&pcm, binary.LittleEndian, int16(100))
	}
	wav := buildWav(t, 1, 8000, 16, pcm.Bytes())

	d := NewWavDecoder()
	samples, err := d.Decode(wav)
	require.NoError(t, err)
	require.Len(t, samples, 16000)
}

func TestWavDecoder_Decode_RejectsNonRiff(t *testing.T) {
	d := NewWavDecoder()
	_, err := d.Decode([]byte("not a wav file at all"))
	require.ErrorIs(t, err, apperrors.ErrInvalidAudio)
}

func TestWavDecoder_Decode_RejectsUnsupportedBitDepth(t *testing.T) {
	wav := buildWav(t, 1, targetSampleRate, 32, make([]byte, 8))
	d := NewWavDecoder()
	_, err := d.Decode(wav)
	require.ErrorIs(t, err, apperrors.ErrInvalidAudio)
}

func TestWavDecoder_Decode_RejectsEmptyData(t *testing.T) {
	wav := buildWav(t, 1, targetSampleRate, 16, nil)
	d := NewWavDecoder()
	_, err := d.Decode(wav)
	require.ErrorIs(t, err, apperrors.ErrInvalidUpload)
}
