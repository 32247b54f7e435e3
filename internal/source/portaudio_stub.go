//go:build !portaudio

package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/obiente/translate/livetranslate/internal/audio"
	"github.com/obiente/translate/livetranslate/internal/transcript"
)

var errNoPortAudio = errors.New("built without portaudio tag")

// DeviceConfig selects and configures a capture device.
type DeviceConfig struct {
	ID              int
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// Capture is unavailable in builds without the portaudio tag.
type Capture struct{}

func ListDevices() ([]Device, error) {
	return nil, fmt.Errorf("%w: %v", transcript.ErrDevice, errNoPortAudio)
}

func OpenDevice(DeviceConfig) (*Capture, error) {
	return nil, fmt.Errorf("%w: %v", transcript.ErrDevice, errNoPortAudio)
}

func (c *Capture) Format() audio.Format { return audio.Format{} }

func (c *Capture) Start(context.Context, func(audio.SampleFrame)) error {
	return fmt.Errorf("%w: %v", transcript.ErrDevice, errNoPortAudio)
}

func (c *Capture) Close() error { return nil }
