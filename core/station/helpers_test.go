package station

import (
	"time"

	"github.com/BusBom/rpi-server/core/model"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func status(v ...int) model.Status { return model.StatusFromInts(v) }

// settle feeds v to the stabilizer and waits out the confirmation window.
func settle(clk *fakeClock, r *Reconciler, v model.Status) {
	r.Stabilizer().Update(v)
	clk.Advance(r.cfg.ConfirmationWindow())
}
