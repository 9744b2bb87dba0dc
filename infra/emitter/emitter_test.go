package emitter

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BusBom/rpi-server/core/dispatch"
	"github.com/BusBom/rpi-server/core/factory"
	"github.com/BusBom/rpi-server/core/model"
)

func displays(ids ...model.BusID) model.Instructions {
	in := model.NewInstructions(len(ids))
	for i, id := range ids {
		in.Set(i, id)
	}
	return in
}

func TestConsoleEmitterRendersLine(t *testing.T) {
	var buf bytes.Buffer
	em := NewConsoleEmitter(&buf)
	require.NoError(t, em.Emit(context.Background(), displays("55", model.UnknownBus, "7")))
	require.NoError(t, em.Emit(context.Background(), displays(model.UnknownBus, model.UnknownBus)))
	assert.Equal(t, "\"55\":\" \":\"7\"\n\" \":\" \"\n", buf.String())
}

func TestDeviceEmitterWritesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tty")
	em, err := NewDeviceEmitter(DeviceConfig{Path: path, Append: true})
	require.NoError(t, err)

	require.NoError(t, em.Emit(context.Background(), displays("1", "2")))
	require.NoError(t, em.Close())
	require.NoError(t, em.Emit(context.Background(), displays("3")))
	require.NoError(t, em.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\"1\":\"2\"\n\"3\"\n", string(data))
}

func TestDeviceEmitterErrors(t *testing.T) {
	_, err := NewDeviceEmitter(DeviceConfig{})
	require.Error(t, err)

	em, err := NewDeviceEmitter(DeviceConfig{Path: filepath.Join(t.TempDir(), "missing", "tty")})
	require.NoError(t, err)
	require.Error(t, em.Emit(context.Background(), displays("1")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, em.Emit(ctx, displays("1")), context.Canceled)
}

func TestRegisteredEmitters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tty")
	em, err := dispatch.NewEmitter([]factory.ModuleConfig{
		{Type: "nop"},
		{Type: "device", Conf: map[string]any{"path": path}},
	})
	require.NoError(t, err)
	require.NoError(t, em.Emit(context.Background(), displays("9")))
	require.NoError(t, em.(*dispatch.MultiEmitter).Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\"9\"\n", string(data))

	_, err = dispatch.NewEmitter([]factory.ModuleConfig{{Type: "device"}})
	require.Error(t, err)
}
