package emitter

import (
	"github.com/BusBom/rpi-server/core/dispatch"
	"github.com/BusBom/rpi-server/core/factory"
)

// init registers the built-in emitters.
func init() {
	_ = dispatch.RegisterEmitter("nop", func(map[string]any) (dispatch.Emitter, error) {
		return dispatch.NopEmitter{}, nil
	})

	_ = dispatch.RegisterEmitter("console", func(map[string]any) (dispatch.Emitter, error) {
		return NewConsoleEmitter(nil), nil
	})

	_ = dispatch.RegisterEmitter("device", func(conf map[string]any) (dispatch.Emitter, error) {
		var c DeviceConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewDeviceEmitter(c)
	})
}
