package emitter

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/BusBom/rpi-server/core/model"
	"github.com/BusBom/rpi-server/infra/logger"
)

// DeviceConfig configures the character device emitter.
type DeviceConfig struct {
	Path   string `json:"path"`
	Append bool   `json:"append"`
}

// DeviceEmitter writes rendered instructions to a character device or file,
// such as the UART feeding the platform displays. The device is opened
// lazily and reopened after a write failure.
type DeviceEmitter struct {
	cfg DeviceConfig
	log logger.Logger

	mu sync.Mutex
	f  *os.File
}

// NewDeviceEmitter validates the configuration and returns the emitter.
// Opening is deferred to the first Emit so a missing device does not
// prevent startup.
func NewDeviceEmitter(cfg DeviceConfig) (*DeviceEmitter, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("device emitter: path is required")
	}
	return &DeviceEmitter{cfg: cfg, log: logger.New("device_emitter")}, nil
}

func (d *DeviceEmitter) open() (*os.File, error) {
	if d.f != nil {
		return d.f, nil
	}
	flags := os.O_WRONLY | os.O_CREATE
	if d.cfg.Append {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(d.cfg.Path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	d.f = f
	return f, nil
}

// Emit writes the rendered line terminated by a newline.
func (d *DeviceEmitter) Emit(ctx context.Context, in model.Instructions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	f, err := d.open()
	if err != nil {
		return fmt.Errorf("open %s: %w", d.cfg.Path, err)
	}
	if _, err := f.WriteString(in.Render() + "\n"); err != nil {
		d.log.Errorf("write %s failed: %v", d.cfg.Path, err)
		_ = f.Close()
		d.f = nil
		return fmt.Errorf("write %s: %w", d.cfg.Path, err)
	}
	return nil
}

// Close releases the device.
func (d *DeviceEmitter) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
