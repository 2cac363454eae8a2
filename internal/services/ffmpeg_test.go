package services

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/salesreel/salesreel/internal/models"
)

func TestAtempoChain(t *testing.T) {
	cases := []struct {
		ratio float64
		want  []float64
	}{
		{1.0, []float64{1.0}},
		{1.5, []float64{1.5}},
		{2.0, []float64{2.0}},
		{2.5, []float64{2.0, 1.25}},
		{5.0, []float64{2.0, 2.0, 1.25}},
		{0.5, []float64{0.5}},
		{0.4, []float64{0.5, 0.8}},
	}

	for _, tc := range cases {
		got, err := AtempoChain(tc.ratio)
		if err != nil {
			t.Errorf("AtempoChain(%v) error = %v", tc.ratio, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("AtempoChain(%v) = %v, want %v", tc.ratio, got, tc.want)
		}
	}
}

func TestAtempoChainProperties(t *testing.T) {
	// Whatever the ratio, every factor must stay in ffmpeg's accepted range
	// and the chain must multiply back to the input.
	for _, ratio := range []float64{0.01, 0.1, 0.33, 0.77, 1.0, 1.99, 3.7, 10.0, 64.0} {
		factors, err := AtempoChain(ratio)
		if err != nil {
			t.Fatalf("AtempoChain(%v) error = %v", ratio, err)
		}
		if len(factors) == 0 {
			t.Fatalf("AtempoChain(%v) returned no factors", ratio)
		}

		product := 1.0
		for _, factor := range factors {
			if factor < atempoMin || factor > atempoMax {
				t.Errorf("AtempoChain(%v) factor %v out of [%v, %v]", ratio, factor, atempoMin, atempoMax)
			}
			product *= factor
		}
		if math.Abs(product-ratio) > 1e-9 {
			t.Errorf("AtempoChain(%v) product = %v", ratio, product)
		}
	}
}

func TestAtempoChainRejectsInvalid(t *testing.T) {
	for _, ratio := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := AtempoChain(ratio); err == nil {
			t.Errorf("AtempoChain(%v) expected error", ratio)
		}
	}
}

func TestChooseStrategy(t *testing.T) {
	cases := []struct {
		ratio     float64
		tolerance float64
		want      models.SyncStrategy
	}{
		{1.0, 0.02, models.SyncStrategyTrim},
		{1.019, 0.02, models.SyncStrategyTrim},
		{0.981, 0.02, models.SyncStrategyPad},
		{1.021, 0.02, models.SyncStrategyStretch},
		{0.979, 0.02, models.SyncStrategyStretch},
		{0.5, 0.02, models.SyncStrategyStretch},
		{3.0, 0.02, models.SyncStrategyStretch},
		// boundary: |ratio-1| == tolerance
		{1.5, 0.5, models.SyncStrategyTrim},
		// non-positive tolerance falls back to the default
		{1.019, 0, models.SyncStrategyTrim},
		{1.03, -1, models.SyncStrategyStretch},
	}

	for _, tc := range cases {
		if got := ChooseStrategy(tc.ratio, tc.tolerance); got != tc.want {
			t.Errorf("ChooseStrategy(%v, %v) = %v, want %v", tc.ratio, tc.tolerance, got, tc.want)
		}
	}
}

func TestAtempoFilter(t *testing.T) {
	if got := atempoFilter([]float64{2.0, 1.25}); got != "atempo=2.000000,atempo=1.250000" {
		t.Errorf("atempoFilter = %q", got)
	}
	if got := atempoFilter([]float64{0.5}); got != "atempo=0.500000" {
		t.Errorf("atempoFilter = %q", got)
	}
}

func TestSyncArgs(t *testing.T) {
	f := NewFFmpeg("", "")

	t.Run("stretch", func(t *testing.T) {
		args, err := f.syncArgs("v.mp4", "a.mp3", "out.mp4", models.SyncStrategyStretch, 2.5)
		if err != nil {
			t.Fatalf("syncArgs() error = %v", err)
		}
		want := []string{
			"-i", "v.mp4",
			"-i", "a.mp3",
			"-map", "0:v:0",
			"-map", "1:a:0",
			"-af", "atempo=2.000000,atempo=1.250000",
			"-c:v", "copy",
			"-c:a", "aac",
			"-shortest",
			"-y",
			"out.mp4",
		}
		if !reflect.DeepEqual(args, want) {
			t.Errorf("syncArgs() = %v, want %v", args, want)
		}
	})

	t.Run("pad", func(t *testing.T) {
		args, err := f.syncArgs("v.mp4", "a.mp3", "out.mp4", models.SyncStrategyPad, 0.99)
		if err != nil {
			t.Fatalf("syncArgs() error = %v", err)
		}
		found := false
		for i := 0; i < len(args)-1; i++ {
			if args[i] == "-af" && args[i+1] == "apad" {
				found = true
			}
		}
		if !found {
			t.Errorf("syncArgs() missing -af apad: %v", args)
		}
	})

	t.Run("trim", func(t *testing.T) {
		args, err := f.syncArgs("v.mp4", "a.mp3", "out.mp4", models.SyncStrategyTrim, 1.01)
		if err != nil {
			t.Fatalf("syncArgs() error = %v", err)
		}
		for _, arg := range args {
			if arg == "-af" {
				t.Errorf("syncArgs() should not filter audio when trimming: %v", args)
			}
		}
		last := args[len(args)-1]
		if last != "out.mp4" {
			t.Errorf("syncArgs() last arg = %q, want output path", last)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := f.syncArgs("v.mp4", "a.mp3", "out.mp4", models.SyncStrategy("resample"), 1.0); err == nil {
			t.Error("syncArgs() expected error for unknown strategy")
		}
	})
}

func TestProbeMissingFile(t *testing.T) {
	f := NewFFmpeg("", "")

	if _, err := f.Probe(context.Background(), "/does/not/exist.mp4"); err == nil {
		t.Error("Probe() expected error for missing file")
	}
}

func TestNewFFmpegDefaults(t *testing.T) {
	f := NewFFmpeg("", "")
	if f.ffmpegPath != "ffmpeg" || f.ffprobePath != "ffprobe" {
		t.Errorf("NewFFmpeg defaults = %q, %q", f.ffmpegPath, f.ffprobePath)
	}
	if f.Tolerance != DefaultSyncTolerance {
		t.Errorf("Tolerance = %v, want %v", f.Tolerance, DefaultSyncTolerance)
	}

	custom := NewFFmpeg("/usr/local/bin/ffmpeg", "/usr/local/bin/ffprobe")
	if custom.ffmpegPath != "/usr/local/bin/ffmpeg" {
		t.Errorf("ffmpegPath = %q", custom.ffmpegPath)
	}
}

func TestLastLines(t *testing.T) {
	if got := lastLines("a\nb\nc\nd", 2); got != "c | d" {
		t.Errorf("lastLines = %q", got)
	}
	if got := lastLines("only", 5); got != "only" {
		t.Errorf("lastLines = %q", got)
	}
}
