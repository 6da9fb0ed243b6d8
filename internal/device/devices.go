package device

import (
	"strings"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audiobridge/internal/errors"
)

// Info describes one audio device for enumeration output.
type Info struct {
	Index     int
	Name      string
	IsDefault bool
}

// Inventory lists the capture and playback devices the active backend sees.
type Inventory struct {
	Capture  []Info
	Playback []Info
}

// Devices enumerates audio devices using a short-lived context.
func Devices() (*Inventory, error) {
	ctx, err := malgo.InitContext(contextBackends(), malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryDevice).
			Context("operation", "init-context").
			Build()
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	inv := &Inventory{}
	if inv.Capture, err = enumerate(ctx, malgo.Capture); err != nil {
		return nil, err
	}
	if inv.Playback, err = enumerate(ctx, malgo.Playback); err != nil {
		return nil, err
	}
	return inv, nil
}

func enumerate(ctx *malgo.AllocatedContext, kind malgo.DeviceType) ([]Info, error) {
	infos, err := ctx.Devices(kind)
	if err != nil {
		return nil, errors.New(err).
			Component("device").
			Category(errors.CategoryDevice).
			Context("operation", "enumerate").
			Build()
	}
	devices := make([]Info, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, Info{
			Index:     i,
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return devices, nil
}

// resolveDeviceIDs finds the capture and playback devices whose names match
// the configured substring, case-insensitively.
func resolveDeviceIDs(ctx *malgo.AllocatedContext, name string) (captureID, playbackID unsafe.Pointer, err error) {
	captureInfos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, nil, errors.New(err).
			Component("device").
			Category(errors.CategoryDevice).
			Context("operation", "enumerate").
			Build()
	}
	playbackInfos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, nil, errors.New(err).
			Component("device").
			Category(errors.CategoryDevice).
			Context("operation", "enumerate").
			Build()
	}

	ci := matchDevice(deviceNames(captureInfos), name)
	pi := matchDevice(deviceNames(playbackInfos), name)
	if ci < 0 && pi < 0 {
		return nil, nil, errors.Newf("no device matching %q", name).
			Component("device").
			Category(errors.CategoryNotFound).
			Context("device", name).
			Build()
	}
	if ci >= 0 {
		captureID = captureInfos[ci].ID.Pointer()
	}
	if pi >= 0 {
		playbackID = playbackInfos[pi].ID.Pointer()
	}
	return captureID, playbackID, nil
}

func deviceNames(infos []malgo.DeviceInfo) []string {
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names
}

// matchDevice returns the index of the first name containing the wanted
// substring, case-insensitively, or -1.
func matchDevice(names []string, want string) int {
	want = strings.ToLower(want)
	for i, name := range names {
		if strings.Contains(strings.ToLower(name), want) {
			return i
		}
	}
	return -1
}
