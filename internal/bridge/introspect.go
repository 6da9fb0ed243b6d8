package bridge

import "fmt"

// Levels is a snapshot of ring occupancy for diagnostics. Values are read
// without coordination, so they describe a moment, not a consistent cut.
type Levels struct {
	Capture         int `json:"capture"`          // unread captured bytes
	Playback        int `json:"playback"`         // buffered playback bytes
	Staging         int `json:"staging"`          // staged input bytes
	StagingCapacity int `json:"staging_capacity"` // current staging capacity in bytes
}

// Stats is a snapshot of the stream's counters and pacing state.
type Stats struct {
	Underflows        uint64 `json:"underflows"`
	CaptureDropped    uint64 `json:"capture_dropped_bytes"`
	PlaybackDropped   uint64 `json:"playback_dropped_bytes"`
	StagingGrows      uint64 `json:"staging_grows"`
	PrerollsCompleted uint64 `json:"prerolls_completed"`
	LastPullBytes     int    `json:"last_pull_bytes"`
	MaxPullBytes      int    `json:"max_pull_bytes"`
	Prerolled         bool   `json:"prerolled"`
	PacingActive      bool   `json:"pacing_active"`
	Mode              string `json:"mode"`
}

// Levels returns the current ring occupancy levels.
func (s *Stream) Levels() Levels {
	return Levels{
		Capture:         s.capture.Used(),
		Playback:        s.playback.Used(),
		Staging:         s.staging.Used(),
		StagingCapacity: s.staging.Cap(),
	}
}

// Stats returns the current counters and pacing state.
func (s *Stream) Stats() Stats {
	return Stats{
		Underflows:        s.playback.Underflows(),
		CaptureDropped:    s.capture.Dropped(),
		PlaybackDropped:   s.playback.Dropped(),
		StagingGrows:      s.staging.Grows(),
		PrerollsCompleted: s.pacer.prerollsCompleted.Load(),
		LastPullBytes:     s.playback.LastPull(),
		MaxPullBytes:      s.playback.MaxPull(),
		Prerolled:         s.pacer.prerolled.Load(),
		PacingActive:      s.pacer.running.Load(),
		Mode:              s.Mode().String(),
	}
}

// RingCapacity returns the capacity of the capture and playback rings.
func (s *Stream) RingCapacity() int {
	return s.playback.Cap()
}

// DebugString renders a one-line state dump for logs and the debug endpoint.
func (s *Stream) DebugString() string {
	l := s.Levels()
	st := s.Stats()
	return fmt.Sprintf("mode=%s cap=%d/%d play=%d/%d staging=%d/%d underflows=%d rlast=%d rmax=%d prerolled=%v",
		s.Mode(), l.Capture, s.capture.Cap(), l.Playback, s.playback.Cap(),
		l.Staging, l.StagingCapacity, st.Underflows, st.LastPullBytes, st.MaxPullBytes, st.Prerolled)
}
