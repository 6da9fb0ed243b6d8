// Package diagnostics collects system and audio environment information
// for the doctor command.
package diagnostics

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tphakala/audiobridge/internal/conf"
	"github.com/tphakala/audiobridge/internal/device"
)

// Report holds everything the doctor command prints. Probe failures are
// recorded as warnings rather than aborting the report.
type Report struct {
	GeneratedAt time.Time

	Host    HostInfo
	Runtime RuntimeInfo
	Audio   AudioInfo
	Config  ConfigInfo

	Warnings []string
}

// HostInfo describes the machine the bridge is running on.
type HostInfo struct {
	Hostname      string
	OS            string
	Platform      string
	KernelVersion string
	UptimeSec     uint64
	CPUModel      string
	CPUCores      int
	MemTotalMB    uint64
	MemUsedPct    float64
}

// RuntimeInfo describes the Go runtime environment.
type RuntimeInfo struct {
	Version    string
	GOOS       string
	GOARCH     string
	NumCPU     int
	Goroutines int
}

// AudioInfo lists the devices visible to the audio backend.
type AudioInfo struct {
	Capture  []device.Info
	Playback []device.Info
}

// ConfigInfo summarizes the effective audio and pacing configuration.
type ConfigInfo struct {
	Device                string
	SampleRate            int
	Channels              int
	SliceMs               int
	PrerollMs             int
	HeadroomMs            int
	RenderGuardMultiplier float64
	AECEnabled            bool
}

// Collect gathers a full report. It never returns an error; probes that
// fail add warnings instead so a broken subsystem does not hide the rest.
func Collect(settings *conf.Settings) *Report {
	r := &Report{
		GeneratedAt: time.Now(),
		Runtime: RuntimeInfo{
			Version:    runtime.Version(),
			GOOS:       runtime.GOOS,
			GOARCH:     runtime.GOARCH,
			NumCPU:     runtime.NumCPU(),
			Goroutines: runtime.NumGoroutine(),
		},
		Config: ConfigInfo{
			Device:                settings.Audio.Device,
			SampleRate:            settings.Audio.SampleRate,
			Channels:              settings.Audio.Channels,
			SliceMs:               settings.Pacing.SliceMs,
			PrerollMs:             settings.Pacing.PrerollMs,
			HeadroomMs:            settings.Pacing.HeadroomMs,
			RenderGuardMultiplier: settings.Pacing.RenderGuardMultiplier,
			AECEnabled:            settings.AEC.Enabled,
		},
	}

	r.collectHost()
	r.collectAudio()
	return r
}

func (r *Report) collectHost() {
	if info, err := host.Info(); err != nil {
		r.warnf("host info: %v", err)
	} else {
		r.Host.Hostname = info.Hostname
		r.Host.OS = info.OS
		r.Host.Platform = fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)
		r.Host.KernelVersion = info.KernelVersion
		r.Host.UptimeSec = info.Uptime
	}

	if infos, err := cpu.Info(); err != nil {
		r.warnf("cpu info: %v", err)
	} else if len(infos) > 0 {
		r.Host.CPUModel = infos[0].ModelName
		r.Host.CPUCores = len(infos)
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		r.warnf("memory info: %v", err)
	} else {
		r.Host.MemTotalMB = vm.Total / 1024 / 1024
		r.Host.MemUsedPct = vm.UsedPercent
	}
}

func (r *Report) collectAudio() {
	inventory, err := device.Devices()
	if err != nil {
		r.warnf("device enumeration: %v", err)
		return
	}
	r.Audio.Capture = inventory.Capture
	r.Audio.Playback = inventory.Playback
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// String renders the report as the doctor command prints it.
func (r *Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "audiobridge doctor report, generated %s\n\n", r.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "Host:\n")
	fmt.Fprintf(&b, "  hostname: %s\n", orUnknown(r.Host.Hostname))
	fmt.Fprintf(&b, "  platform: %s (%s)\n", orUnknown(r.Host.Platform), orUnknown(r.Host.OS))
	fmt.Fprintf(&b, "  kernel:   %s\n", orUnknown(r.Host.KernelVersion))
	fmt.Fprintf(&b, "  uptime:   %s\n", (time.Duration(r.Host.UptimeSec) * time.Second).String())
	fmt.Fprintf(&b, "  cpu:      %s (%d cores)\n", orUnknown(r.Host.CPUModel), r.Host.CPUCores)
	fmt.Fprintf(&b, "  memory:   %d MB total, %.1f%% used\n\n", r.Host.MemTotalMB, r.Host.MemUsedPct)

	fmt.Fprintf(&b, "Runtime:\n")
	fmt.Fprintf(&b, "  go:         %s %s/%s\n", r.Runtime.Version, r.Runtime.GOOS, r.Runtime.GOARCH)
	fmt.Fprintf(&b, "  cpus:       %d\n", r.Runtime.NumCPU)
	fmt.Fprintf(&b, "  goroutines: %d\n\n", r.Runtime.Goroutines)

	fmt.Fprintf(&b, "Audio devices:\n")
	writeDeviceList(&b, "capture", r.Audio.Capture)
	writeDeviceList(&b, "playback", r.Audio.Playback)
	b.WriteString("\n")

	fmt.Fprintf(&b, "Configuration:\n")
	fmt.Fprintf(&b, "  device:      %s\n", orDefault(r.Config.Device))
	fmt.Fprintf(&b, "  format:      S16 %d Hz, %d channel(s)\n", r.Config.SampleRate, r.Config.Channels)
	fmt.Fprintf(&b, "  pacing:      slice %d ms, preroll %d ms, headroom %d ms, guard x%.2f\n",
		r.Config.SliceMs, r.Config.PrerollMs, r.Config.HeadroomMs, r.Config.RenderGuardMultiplier)
	fmt.Fprintf(&b, "  aec:         %v\n", r.Config.AECEnabled)

	if len(r.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}

	return b.String()
}

func writeDeviceList(b *strings.Builder, kind string, devices []device.Info) {
	if len(devices) == 0 {
		fmt.Fprintf(b, "  %s: none found\n", kind)
		return
	}
	for _, d := range devices {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Fprintf(b, "  %s %s [%d] %s\n", marker, kind, d.Index, d.Name)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func orDefault(s string) string {
	if s == "" {
		return "(system default)"
	}
	return s
}
