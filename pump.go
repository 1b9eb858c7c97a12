package grid

import (
	"context"
	"time"
)

// Pump is the thin cooperative driver over a Pool. It exists so hosts
// have one object to hand their frame loop: Yield from hot paths, Wait
// when idle, Drain at teardown. Dependency edges are cleared from inside
// pool callbacks, so pumping the pool is what lets the registry make
// progress.
type Pump struct {
	pool *Pool
}

// NewPump wraps pool.
func NewPump(pool *Pool) *Pump {
	return &Pump{pool: pool}
}

// Yield does one zero-timeout poll pass if work is in flight. It never
// blocks; call it from per-frame hot paths.
func (p *Pump) Yield() { p.pool.Yield() }

// Wait does one standard-timeout poll pass if work is in flight.
func (p *Pump) Wait() { p.pool.Wait() }

// Drain polls until no work is in flight.
func (p *Pump) Drain() { p.pool.Drain() }

// Run pumps the pool until ctx is done and returns ctx.Err(). When
// nothing is in flight it sleeps one pool timeout instead of spinning.
// Run is a convenience owner loop; hosts that already have a frame loop
// call Yield or Wait themselves instead.
func (p *Pump) Run(ctx context.Context) error {
	idle := time.NewTicker(p.pool.timeout)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if p.pool.InFlight() == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-idle.C:
			}
			continue
		}
		p.pool.Wait()
	}
}
