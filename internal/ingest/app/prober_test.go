package app

import (
	"context"
	"errors"
	"testing"

	"video_ingest_service/internal/ingest/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProbe = `{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
     "r_frame_rate": "30/1", "avg_frame_rate": "30000/1001", "bit_rate": "4000000", "duration": "185.2"},
    {"codec_type": "audio", "codec_name": "aac", "duration": "185.1"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "185.233", "bit_rate": "4200000"}
}`

func TestParseProbeOutput(t *testing.T) {
	info, err := parseProbeOutput("in.mp4", []byte(sampleProbe))
	require.NoError(t, err)

	assert.InDelta(t, 185.233, info.DurationSeconds, 0.0001)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.Equal(t, "h264", info.VideoCodec)
	assert.Equal(t, "aac", info.AudioCodec)
	assert.InDelta(t, 29.97, info.FrameRate, 0.01)
	assert.Equal(t, int64(4200000), info.BitRate)
	assert.Equal(t, "mov", info.FormatName)
}

func TestParseProbeOutput_AudioOnlyFallsBackToStreamDuration(t *testing.T) {
	out := `{"streams":[{"codec_type":"audio","codec_name":"mp3","duration":"12.5"}],"format":{"format_name":"mp3"}}`
	info, err := parseProbeOutput("a.mp3", []byte(out))
	require.NoError(t, err)

	assert.Equal(t, 12.5, info.DurationSeconds)
	assert.Zero(t, info.Width)
	assert.Empty(t, info.VideoCodec)
}

func TestParseProbeOutput_Errors(t *testing.T) {
	var pe *domain.ProbeError

	_, err := parseProbeOutput("bad.mp4", []byte("not json"))
	assert.True(t, errors.As(err, &pe))

	_, err = parseProbeOutput("zero.mp4", []byte(`{"streams":[],"format":{"duration":"0"}}`))
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "zero.mp4", pe.Path)
}

func TestFFProbe_RunnerFailure(t *testing.T) {
	p := NewFFProbe("")
	assert.Equal(t, "ffprobe", p.Bin)

	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "ffprobe", name)
		assert.Equal(t, "broken.mp4", args[len(args)-1])
		return nil, errors.New("exit status 1")
	}
	_, err := p.Probe(context.Background(), "broken.mp4")

	var pe *domain.ProbeError
	assert.True(t, errors.As(err, &pe))
}

func TestParseFrameRate(t *testing.T) {
	assert.Equal(t, float64(25), ParseFrameRate("25/1"))
	assert.Equal(t, float64(0), ParseFrameRate("0/0"))
	assert.Equal(t, float64(24), ParseFrameRate("24"))
	assert.Equal(t, float64(0), ParseFrameRate(""))
}
