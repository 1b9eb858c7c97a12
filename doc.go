// Package grid provides dependency-tracked GPU work scheduling for the
// GoGPU rendering stack.
//
// # Overview
//
// grid sequences units of asynchronous device work across the stages of a
// compute rendering pipeline (path building, raster generation, composition,
// styling, rendering). It has two cooperating parts:
//
//   - The Registry: a fixed-capacity DAG scheduler. Clients attach grids
//     (units of work), declare "this must not run until that has finished"
//     edges, and the registry drives each grid through a small state machine,
//     dispatching execute callbacks once all predecessors have completed.
//   - The Pool: a bounded pool of device fences bound to submitted command
//     batches. It polls the device for completion signals and delivers each
//     submission's completion callback exactly once.
//
// A thin Pump drives the Pool cooperatively (yield / wait / drain), and
// dependency edges are cleared from inside Pool callbacks, so pumping the
// Pool is what makes the Registry make progress.
//
// # Quick Start
//
//	dev, _ := backend.Default()
//	reg := grid.NewRegistry()
//	pool, _ := grid.NewPool(dev, 8)
//
//	h := reg.Attach(&grid.GridDesc{
//	    Label: "raster",
//	    OnExecute: func(h grid.Handle, _ any) {
//	        fence, _ := pool.Acquire(batch, func([]byte) {
//	            reg.Complete(h)
//	        }, nil)
//	        dev.Submit(batch, fence)
//	    },
//	})
//	reg.Start(h)
//
// # Concurrency Model
//
// A single logical owner goroutine drives the Registry and the Pool. All
// registry and pool state mutation happens either synchronously in a client
// call or synchronously inside a Pool completion callback, which only ever
// runs from a poll on the owner goroutine. Device-side concurrency is real;
// host-side scheduler state is single-threaded and lock-free on purpose.
//
// # Backends
//
// Device implementations live in backend/ (pure-Go software device),
// backend/native (gogpu/wgpu HAL devices) and backend/gogpu (adapters for
// hosts that own a gpucontext device).
package grid
