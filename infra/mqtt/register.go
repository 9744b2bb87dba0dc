package mqtt

import (
	"github.com/BusBom/rpi-server/core/dispatch"
	"github.com/BusBom/rpi-server/core/factory"
)

func init() {
	_ = dispatch.RegisterEmitter("mqtt", func(conf map[string]any) (dispatch.Emitter, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewPahoClient(c)
	})
}
