package emitter

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/BusBom/rpi-server/core/model"
)

// ConsoleEmitter writes one rendered line per emission.
type ConsoleEmitter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleEmitter returns an emitter writing to w. A nil writer selects
// stdout.
func NewConsoleEmitter(w io.Writer) *ConsoleEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleEmitter{w: w}
}

// Emit writes the rendered instructions followed by a newline.
func (c *ConsoleEmitter) Emit(_ context.Context, in model.Instructions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.w, in.Render()); err != nil {
		return fmt.Errorf("console emit: %w", err)
	}
	return nil
}
