package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultTestSettings() *Settings {
	return &Settings{
		Audio: AudioSettings{
			SampleRate: DefaultSampleRate,
			Channels:   DefaultChannels,
			FrameMs:    DefaultFrameMs,
		},
		Pacing: PacingSettings{
			SliceMs:               DefaultSliceMs,
			PrerollMs:             DefaultPrerollMs,
			HeadroomMs:            DefaultHeadroomMs,
			RenderGuardMultiplier: DefaultRenderGuardMultiplier,
		},
		AEC: AECSettings{
			Enabled:      true,
			TapLength:    160,
			DelaySamples: 640,
			StepSize:     0.1,
		},
	}
}

func TestValidateDefaults(t *testing.T) {
	s := defaultTestSettings()
	require.NoError(t, Validate(s))
}

func TestValidateAudio(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"zero_samplerate", func(s *Settings) { s.Audio.SampleRate = 0 }, true},
		{"negative_samplerate", func(s *Settings) { s.Audio.SampleRate = -16000 }, true},
		{"zero_channels", func(s *Settings) { s.Audio.Channels = 0 }, true},
		{"negative_ring_capacity", func(s *Settings) { s.Audio.RingCapacity = -1 }, true},
		{"explicit_ring_capacity", func(s *Settings) { s.Audio.RingCapacity = 64000 }, false},
		{"stereo_48k", func(s *Settings) { s.Audio.SampleRate = 48000; s.Audio.Channels = 2 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultTestSettings()
			tt.mutate(s)
			err := Validate(s)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePacingClampsAndDefaults(t *testing.T) {
	s := defaultTestSettings()
	s.Pacing.SliceMs = 0
	s.Pacing.PrerollMs = -5
	s.Pacing.HeadroomMs = -1
	s.Pacing.RenderGuardMultiplier = 0.25

	require.NoError(t, Validate(s))
	assert.Equal(t, DefaultSliceMs, s.Pacing.SliceMs)
	assert.Equal(t, 0, s.Pacing.PrerollMs)
	assert.Equal(t, 0, s.Pacing.HeadroomMs)
	assert.InDelta(t, RenderGuardMin, s.Pacing.RenderGuardMultiplier, 1e-9)

	s.Pacing.RenderGuardMultiplier = 10
	require.NoError(t, Validate(s))
	assert.InDelta(t, RenderGuardMax, s.Pacing.RenderGuardMultiplier, 1e-9)
}

func TestValidateAEC(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"disabled_skips_checks", func(s *Settings) { s.AEC = AECSettings{Enabled: false} }, false},
		{"zero_taps", func(s *Settings) { s.AEC.TapLength = 0 }, true},
		{"negative_delay", func(s *Settings) { s.AEC.DelaySamples = -1 }, true},
		{"step_too_large", func(s *Settings) { s.AEC.StepSize = 2.0 }, true},
		{"step_zero", func(s *Settings) { s.AEC.StepSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultTestSettings()
			tt.mutate(s)
			err := Validate(s)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFrameMsFallsBackToDefault(t *testing.T) {
	s := defaultTestSettings()
	s.Audio.FrameMs = 0
	require.NoError(t, Validate(s))
	assert.Equal(t, DefaultFrameMs, s.Audio.FrameMs)
}
