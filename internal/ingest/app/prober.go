package app

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"video_ingest_service/internal/ingest/domain"
)

// MediaProber reads media info of a local file
type MediaProber interface {
	Probe(ctx context.Context, path string) (domain.MediaInfo, error)
}

// FFProbe ffprobe backed MediaProber
type FFProbe struct {
	Bin string
	run CommandRunner
}

// NewFFProbe bin defaults to "ffprobe"
func NewFFProbe(bin string) *FFProbe {
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFProbe{Bin: bin, run: execRunner}
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	BitRate      string `json:"bit_rate"`
	Duration     string `json:"duration"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
}

// Probe fails with *domain.ProbeError when ffprobe cannot parse the file or
// the stream has no positive duration.
func (p *FFProbe) Probe(ctx context.Context, path string) (domain.MediaInfo, error) {
	out, err := p.run(ctx, p.Bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return domain.MediaInfo{}, &domain.ProbeError{Path: path, Err: err}
	}
	return parseProbeOutput(path, out)
}

func parseProbeOutput(path string, out []byte) (domain.MediaInfo, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(out, &raw); err != nil {
		return domain.MediaInfo{}, &domain.ProbeError{Path: path, Err: err}
	}

	info := domain.MediaInfo{
		FormatName: firstFormatName(raw.Format.FormatName),
		BitRate:    parseInt(raw.Format.BitRate),
	}
	duration := parseFloat(raw.Format.Duration)

	videoSeen, audioSeen := false, false
	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if videoSeen {
				continue
			}
			videoSeen = true
			info.VideoCodec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			rate := s.AvgFrameRate
			if rate == "" || rate == "0/0" {
				rate = s.RFrameRate
			}
			info.FrameRate = ParseFrameRate(rate)
			if info.BitRate == 0 {
				info.BitRate = parseInt(s.BitRate)
			}
		case "audio":
			if audioSeen {
				continue
			}
			audioSeen = true
			info.AudioCodec = s.CodecName
		}
		// 有些容器的 format 沒有 duration，改用最長的 stream
		if d := parseFloat(s.Duration); d > duration {
			duration = d
		}
	}

	if !(duration > 0) || math.IsInf(duration, 0) {
		return domain.MediaInfo{}, &domain.ProbeError{Path: path, Err: errors.New("zero duration")}
	}
	info.DurationSeconds = duration
	return info, nil
}

// ParseFrameRate "num/den" or a plain number; den == 0 gives 0.
func ParseFrameRate(rate string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(rate), "/")
	if !found {
		return parseFloat(num)
	}
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return parseFloat(num) / d
}

// "mov,mp4,m4a,3gp,3g2,mj2" -> "mov"
func firstFormatName(name string) string {
	first, _, _ := strings.Cut(name, ",")
	return first
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
