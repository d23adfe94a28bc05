// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"

	"microtools/internal/config"
	"microtools/internal/hostdev"

	"github.com/gordonklaus/portaudio"
)

// PortAudio entry points, replaceable in tests.
var (
	paLibInitialize              = portaudio.Initialize
	paLibTerminate               = portaudio.Terminate
	paLibDevicesFunc             = portaudio.Devices
	paLibDefaultInputDeviceFunc  = portaudio.DefaultInputDevice
	paLibDefaultOutputDeviceFunc = portaudio.DefaultOutputDevice

	paDevicesFunc = paDevices
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate shuts down the PortAudio subsystem.
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// HostDevices returns all devices known to PortAudio, indexed by ID.
func HostDevices() ([]hostdev.Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	defIn, _ := paLibDefaultInputDeviceFunc()
	defOut, _ := paLibDefaultOutputDeviceFunc()

	devices := make([]hostdev.Device, len(infos))
	for i, info := range infos {
		d := hostdev.Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			DefaultInput:      defIn != nil && info.Name == defIn.Name,
			DefaultOutput:     defOut != nil && info.Name == defOut.Name,
		}
		if info.HostApi != nil {
			d.HostAPI = info.HostApi.Name
		}
		devices[i] = d
	}
	return devices, nil
}

// InputDevice retrieves the input device for deviceID. config.MinDeviceID
// selects the system default.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	return pickDevice(deviceID, "input", paLibDefaultInputDeviceFunc,
		func(d *portaudio.DeviceInfo) int { return d.MaxInputChannels })
}

// OutputDevice retrieves the output device for deviceID. config.MinDeviceID
// selects the system default.
func OutputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	return pickDevice(deviceID, "output", paLibDefaultOutputDeviceFunc,
		func(d *portaudio.DeviceInfo) int { return d.MaxOutputChannels })
}

func pickDevice(
	deviceID int,
	direction string,
	def func() (*portaudio.DeviceInfo, error),
	channels func(*portaudio.DeviceInfo) int,
) (*portaudio.DeviceInfo, error) {
	devices, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	if deviceID == config.MinDeviceID {
		return def()
	}

	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	device := devices[deviceID]
	if channels(device) == 0 {
		return nil, fmt.Errorf("device %d (%s) does not support %s", deviceID, device.Name, direction)
	}
	return device, nil
}

// ListDevices writes a table of the available devices to w.
func ListDevices(w io.Writer) error {
	devices, err := paDevicesFunc()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")

	for i, info := range devices {
		d := hostdev.Device{MaxInputChannels: info.MaxInputChannels, MaxOutputChannels: info.MaxOutputChannels}

		fmt.Fprintf(w, "[%d] %s (%s)\n", i, info.Name, d.Type())
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", info.MaxInputChannels, info.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", info.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n",
			info.DefaultLowOutputLatency.Seconds()*1000,
			info.DefaultHighOutputLatency.Seconds()*1000)
		fmt.Fprintln(w)
	}

	return nil
}

// paDevices returns all PortAudio devices, never a nil slice on success.
func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := paLibDevicesFunc()
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []*portaudio.DeviceInfo{}
	}
	return devices, nil
}
