package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/BusBom/rpi-server/core/factory"
	"github.com/BusBom/rpi-server/core/model"
)

// Emitter hands a full display mapping to the display hardware or a
// downstream system. Implementations may also implement io.Closer.
type Emitter interface {
	Emit(ctx context.Context, in model.Instructions) error
}

// NopEmitter discards instructions.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, model.Instructions) error { return nil }

var emitterRegistry = factory.NewRegistry[Emitter]()

// RegisterEmitter adds an emitter factory identified by name.
func RegisterEmitter(name string, f factory.Factory[Emitter]) error {
	return emitterRegistry.Register(name, f)
}

// NewEmitter creates an Emitter from the provided configuration. Several
// entries are combined into a MultiEmitter.
func NewEmitter(cfgs []factory.ModuleConfig) (Emitter, error) {
	emitters, err := emitterRegistry.CreateAll(cfgs)
	if err != nil {
		return nil, fmt.Errorf("emitter: %w", err)
	}
	switch len(emitters) {
	case 0:
		return NopEmitter{}, nil
	case 1:
		return emitters[0], nil
	}
	return NewMultiEmitter(emitters...), nil
}

// MultiEmitter forwards instructions to every emitter. One failing
// emitter does not prevent delivery to the others.
type MultiEmitter struct {
	Emitters []Emitter
}

// NewMultiEmitter creates a MultiEmitter.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{Emitters: emitters}
}

// Emit sends in to all emitters and joins their errors.
func (m *MultiEmitter) Emit(ctx context.Context, in model.Instructions) error {
	var errs []error
	for _, e := range m.Emitters {
		if err := e.Emit(ctx, in); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every emitter implementing io.Closer.
func (m *MultiEmitter) Close() error {
	var errs []error
	for _, e := range m.Emitters {
		if c, ok := e.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
