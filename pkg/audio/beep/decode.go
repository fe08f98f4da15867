package beep

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	beeplib "github.com/faiface/beep"
	"github.com/faiface/beep/mp3"

	"github.com/MrWong99/yoassist/pkg/audio"
)

// DecodeMP3 decodes an MP3 stream into 16-bit PCM at the stream's native rate
// and channel count.
func DecodeMP3(data []byte) (audio.Clip, error) {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return audio.Clip{}, fmt.Errorf("beep: decode mp3: %w", err)
	}
	defer streamer.Close()

	pcm, err := drainStreamer(streamer, format.NumChannels)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("beep: decode mp3: %w", err)
	}
	return audio.Clip{
		PCM:        pcm,
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
	}, nil
}

// drainStreamer reads s to the end and encodes it as interleaved int16 PCM
// with the given channel count (1 or 2).
func drainStreamer(s beeplib.Streamer, channels int) ([]byte, error) {
	if channels != 1 {
		channels = 2
	}
	var out bytes.Buffer
	buf := make([][2]float64, 512)
	frame := make([]byte, 2*channels)
	for {
		n, ok := s.Stream(buf)
		for _, smp := range buf[:n] {
			for c := range channels {
				v := max(-1, min(1, smp[c]))
				binary.LittleEndian.PutUint16(frame[c*2:], uint16(int16(v*32767)))
			}
			out.Write(frame)
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
