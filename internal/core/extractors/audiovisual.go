package extractors

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/markdave123-py/coursemate/internal/core"
	"github.com/markdave123-py/coursemate/internal/core/command"
	"github.com/markdave123-py/coursemate/internal/logger"
)

// MediaTools are the binaries the audio-visual path needs.
var MediaTools = []string{"ffmpeg", "ffprobe"}

const (
	// DefaultNoiseFloor is used when calibration cannot measure the input.
	DefaultNoiseFloor = -25.0
	minNoiseFloor     = -80.0
	maxNoiseFloor     = -20.0
	calibrationWindow = "1"
)

var meanVolumeRE = regexp.MustCompile(`mean_volume:\s*(-?[0-9.]+|-inf) dB`)

// AudioVisualExtractor transcribes the audio track of a recording. Frames
// are never analysed.
type AudioVisualExtractor struct {
	runner      command.Runner
	transcriber core.Transcriber
	segment     int
	log         *slog.Logger
}

var _ core.Extractor = (*AudioVisualExtractor)(nil)

func NewAudioVisualExtractor(runner command.Runner, tr core.Transcriber, opts Options, log *slog.Logger) *AudioVisualExtractor {
	opts = opts.withDefaults()
	if runner == nil {
		runner = command.ExecRunner{}
	}
	return &AudioVisualExtractor{
		runner:      runner,
		transcriber: tr,
		segment:     opts.SegmentSeconds,
		log:         logger.OrDiscard(log).With("component", "extractor", "kind", core.KindAudioVisual.String()),
	}
}

func (e *AudioVisualExtractor) Kind() core.FileKind { return core.KindAudioVisual }

func (e *AudioVisualExtractor) Extract(ctx context.Context, doc core.RawDocument) (core.ExtractedText, error) {
	var transcript string
	var segments int
	err := command.WithTempDir("coursemate-av-*", func(dir string) error {
		in := filepath.Join(dir, "input"+strings.ToLower(filepath.Ext(doc.Filename)))
		if err := os.WriteFile(in, doc.Data, 0o600); err != nil {
			return fmt.Errorf("materialise media: %w", err)
		}

		if err := e.requireAudio(ctx, in); err != nil {
			return err
		}

		floor := e.calibrate(ctx, in)
		parts, err := e.extractAudio(ctx, in, dir, floor)
		if err != nil {
			return err
		}

		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			t, err := e.transcriber.Transcribe(ctx, p)
			if err != nil {
				return fmt.Errorf("transcribe %s: %w", filepath.Base(p), err)
			}
			if t = strings.TrimSpace(t); t != "" {
				texts = append(texts, t)
			}
		}
		transcript = strings.Join(texts, "\n")
		segments = len(parts)
		return nil
	})
	if err != nil {
		return core.ExtractedText{}, err
	}
	if transcript == "" {
		return core.ExtractedText{}, fmt.Errorf("%w: audio was unintelligible", core.ErrNoText)
	}
	return core.ExtractedText{Kind: core.KindAudioVisual, Text: transcript, Segments: segments}, nil
}

func (e *AudioVisualExtractor) requireAudio(ctx context.Context, in string) error {
	out, _, err := e.runner.Run(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		in)
	if err != nil {
		return fmt.Errorf("probe media: %w", err)
	}
	if strings.TrimSpace(string(out)) == "" {
		return core.ErrNoAudioTrack
	}
	return nil
}

// calibrate measures the ambient level over the first second and derives the
// denoiser floor from it. Measurement problems fall back to DefaultNoiseFloor.
func (e *AudioVisualExtractor) calibrate(ctx context.Context, in string) float64 {
	_, stderr, err := e.runner.Run(ctx, "ffmpeg",
		"-hide_banner", "-nostats",
		"-t", calibrationWindow,
		"-i", in,
		"-vn", "-af", "volumedetect",
		"-f", "null", "-")
	if err != nil {
		e.log.Debug("noise calibration failed", "error", err)
		return DefaultNoiseFloor
	}
	floor := NoiseFloor(string(stderr))
	e.log.Debug("noise calibrated", "floor_db", floor)
	return floor
}

// NoiseFloor parses volumedetect output into an afftdn noise floor in dB.
func NoiseFloor(volumedetect string) float64 {
	m := meanVolumeRE.FindStringSubmatch(volumedetect)
	if m == nil || m[1] == "-inf" {
		return DefaultNoiseFloor
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || math.IsNaN(v) {
		return DefaultNoiseFloor
	}
	return math.Round(math.Max(minNoiseFloor, math.Min(maxNoiseFloor, v)))
}

// extractAudio drops video, downmixes to 16 kHz mono, denoises at floor and
// splits into fixed-length segments so each upload stays under the
// transcription size limit.
func (e *AudioVisualExtractor) extractAudio(ctx context.Context, in, dir string, floor float64) ([]string, error) {
	pattern := filepath.Join(dir, "audio_%03d.mp3")
	if _, _, err := e.runner.Run(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", in,
		"-vn", "-map", "0:a:0",
		"-ac", "1", "-ar", "16000",
		"-af", fmt.Sprintf("afftdn=nf=%.0f", floor),
		"-c:a", "libmp3lame", "-b:a", "32k",
		"-f", "segment", "-segment_time", strconv.Itoa(e.segment), "-reset_timestamps", "1",
		pattern); err != nil {
		return nil, fmt.Errorf("extract audio track: %w", err)
	}
	parts, err := filepath.Glob(filepath.Join(dir, "audio_*.mp3"))
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, core.ErrNoAudioTrack
	}
	sort.Strings(parts)
	return parts, nil
}
