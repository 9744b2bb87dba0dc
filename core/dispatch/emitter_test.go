package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BusBom/rpi-server/core/factory"
	"github.com/BusBom/rpi-server/core/model"
)

type mockEmitter struct {
	mock.Mock
}

func (m *mockEmitter) Emit(ctx context.Context, in model.Instructions) error {
	return m.Called(ctx, in).Error(0)
}

func (m *mockEmitter) Close() error {
	return m.Called().Error(0)
}

func TestMultiEmitterDeliversToAll(t *testing.T) {
	in := model.NewInstructions(2)
	in.Set(1, "42")

	failing := &mockEmitter{}
	failing.On("Emit", mock.Anything, in).Return(errors.New("uart down")).Once()
	failing.On("Close").Return(nil).Once()
	ok := &mockEmitter{}
	ok.On("Emit", mock.Anything, in).Return(nil).Once()
	ok.On("Close").Return(errors.New("close")).Once()

	m := NewMultiEmitter(failing, ok)
	err := m.Emit(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uart down")
	require.Error(t, m.Close())

	failing.AssertExpectations(t)
	ok.AssertExpectations(t)
}

func TestNewEmitterRegistry(t *testing.T) {
	e, err := NewEmitter(nil)
	require.NoError(t, err)
	assert.IsType(t, NopEmitter{}, e)

	built := &mockEmitter{}
	built.On("Close").Return(nil).Once()
	require.NoError(t, RegisterEmitter("test-mock", func(map[string]any) (Emitter, error) { return built, nil }))

	_, err = NewEmitter([]factory.ModuleConfig{{Type: "test-mock"}, {Type: "missing"}})
	require.Error(t, err)
	built.AssertExpectations(t)

	e, err = NewEmitter([]factory.ModuleConfig{{Type: "test-mock"}})
	require.NoError(t, err)
	assert.Same(t, built, e)
}
