package conf

import (
	"github.com/tphakala/audiobridge/internal/errors"
)

// Validate checks the settings for values the bridge cannot run with and
// normalizes the ones that have a defined clamp.
func Validate(s *Settings) error {
	if err := validateAudio(&s.Audio); err != nil {
		return err
	}
	if err := validatePacing(&s.Pacing); err != nil {
		return err
	}
	if err := validateAEC(&s.AEC); err != nil {
		return err
	}
	return nil
}

func validateAudio(a *AudioSettings) error {
	if a.SampleRate <= 0 {
		return validationError("audio.samplerate must be positive", "samplerate", a.SampleRate)
	}
	if a.Channels <= 0 {
		return validationError("audio.channels must be positive", "channels", a.Channels)
	}
	if a.RingCapacity < 0 {
		return validationError("audio.ringcapacity must not be negative", "ringcapacity", a.RingCapacity)
	}
	if a.FrameMs <= 0 {
		a.FrameMs = DefaultFrameMs
	}
	return nil
}

func validatePacing(p *PacingSettings) error {
	if p.SliceMs <= 0 {
		p.SliceMs = DefaultSliceMs
	}
	if p.PrerollMs < 0 {
		p.PrerollMs = 0
	}
	if p.HeadroomMs < 0 {
		p.HeadroomMs = 0
	}
	// The guard multiplier is clamped, never rejected.
	if p.RenderGuardMultiplier < RenderGuardMin {
		p.RenderGuardMultiplier = RenderGuardMin
	}
	if p.RenderGuardMultiplier > RenderGuardMax {
		p.RenderGuardMultiplier = RenderGuardMax
	}
	return nil
}

func validateAEC(a *AECSettings) error {
	if !a.Enabled {
		return nil
	}
	if a.TapLength <= 0 {
		return validationError("aec.taplength must be positive", "taplength", a.TapLength)
	}
	if a.DelaySamples < 0 {
		return validationError("aec.delaysamples must not be negative", "delaysamples", a.DelaySamples)
	}
	if a.StepSize <= 0 || a.StepSize >= 2 {
		return validationError("aec.stepsize must be in (0, 2)", "stepsize", a.StepSize)
	}
	return nil
}

func validationError(msg, key string, value any) error {
	return errors.Newf("%s", msg).
		Component("conf").
		Category(errors.CategoryValidation).
		Context(key, value).
		Build()
}
