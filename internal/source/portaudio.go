//go:build portaudio

package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livetranslate/internal/audio"
	"github.com/obiente/translate/livetranslate/internal/transcript"
)

// DeviceConfig selects and configures a capture device.
type DeviceConfig struct {
	// ID is an index from ListDevices, or -1 for the system default.
	ID         int
	SampleRate int
	Channels   int
	// FramesPerBuffer defaults to 1024.
	FramesPerBuffer int
}

// Capture records from a PortAudio input device.
type Capture struct {
	stream *portaudio.Stream
	format audio.Format
	name   string

	mu   sync.Mutex
	push func(audio.SampleFrame)

	once sync.Once
	done chan struct{}
}

// ListDevices returns the input-capable devices.
func ListDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %v", transcript.ErrDevice, err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: list devices: %v", transcript.ErrDevice, err)
	}
	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		defaultInput = nil
	}

	var out []Device
	for i, dev := range devices {
		if dev.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, Device{
			ID:                i,
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefault:         defaultInput != nil && dev.Name == defaultInput.Name,
		})
	}
	return out, nil
}

// OpenDevice initialises PortAudio and opens an input stream. A zero
// SampleRate or Channels uses the device defaults.
func OpenDevice(cfg DeviceConfig) (*Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %v", transcript.ErrDevice, err)
	}

	dev, err := selectDevice(cfg.ID)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	if dev.MaxInputChannels <= 0 {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: device %q has no input channels", transcript.ErrDevice, dev.Name)
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = int(dev.DefaultSampleRate)
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = min(dev.MaxInputChannels, 2)
	}
	fpb := cfg.FramesPerBuffer
	if fpb <= 0 {
		fpb = 1024
	}

	c := &Capture{
		format: audio.Format{SampleRate: rate, Channels: channels},
		name:   dev.Name,
		done:   make(chan struct{}),
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: fpb,
	}
	stream, err := portaudio.OpenStream(params, c.callback)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: open stream on %q: %v", transcript.ErrDevice, dev.Name, err)
	}
	c.stream = stream
	return c, nil
}

func selectDevice(id int) (*portaudio.DeviceInfo, error) {
	if id < 0 {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: default input device: %v", transcript.ErrDevice, err)
		}
		return dev, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: list devices: %v", transcript.ErrDevice, err)
	}
	if id >= len(devices) {
		return nil, fmt.Errorf("%w: invalid device ID %d", transcript.ErrDevice, id)
	}
	return devices[id], nil
}

// callback runs on the PortAudio thread. The buffer is reused by PortAudio,
// so it is converted into a fresh frame before returning.
func (c *Capture) callback(in []int16) {
	c.mu.Lock()
	push := c.push
	c.mu.Unlock()
	if push != nil {
		push(audio.FrameFromInt16(in, c.format))
	}
}

func (c *Capture) Format() audio.Format { return c.format }

func (c *Capture) Start(ctx context.Context, push func(audio.SampleFrame)) error {
	c.mu.Lock()
	c.push = push
	c.mu.Unlock()

	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("%w: start stream: %v", transcript.ErrDevice, err)
	}
	log.Info().
		Str("component", "source").
		Str("device", c.name).
		Str("format", c.format.String()).
		Msg("capture started")

	// PortAudio reports no asynchronous failure through the callback API;
	// poll the stream so a vanished device ends the stream.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return c.stop()
		case <-c.done:
			return nil
		case <-ticker.C:
			info := c.stream.Info()
			if info == nil {
				c.stop()
				return fmt.Errorf("%w: stream on %q is no longer available", transcript.ErrDevice, c.name)
			}
		}
	}
}

func (c *Capture) stop() error {
	c.mu.Lock()
	c.push = nil
	c.mu.Unlock()
	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("%w: stop stream: %v", transcript.ErrDevice, err)
	}
	return nil
}

func (c *Capture) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.push = nil
		c.mu.Unlock()
		if e := c.stream.Close(); e != nil {
			err = fmt.Errorf("close stream: %w", e)
		}
		if e := portaudio.Terminate(); e != nil && err == nil {
			err = fmt.Errorf("terminate portaudio: %w", e)
		}
	})
	return err
}
