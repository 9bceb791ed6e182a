// Command latticetop runs a toy pool that keeps spawning and completing
// cells, and attaches the latticetop dashboard to its registry so the
// effect is visible in a terminal.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/pumped-fn/lattice"
	"github.com/pumped-fn/lattice/internal/latticetest"
	"github.com/pumped-fn/lattice/latticetop"
)

func main() {
	pool := lattice.NewPool[int](4, func(err error) {
		fmt.Fprintf(os.Stderr, "callback failed: %v\n", err)
	})

	stop := make(chan struct{})
	go spawnCells(pool, stop)
	defer close(stop)

	if err := latticetop.Run(pool.Registry(), 300*time.Millisecond); err != nil {
		fmt.Fprintf(os.Stderr, "latticetop: %v\n", err)
		os.Exit(1)
	}
}

// spawnCells keeps the registry busy so the dashboard has something to
// show: a new cell appears every 200ms and stays active for a short random
// delay; once it settles it is deregistered and drops out of the table.
func spawnCells(pool *lattice.Pool[int], stop <-chan struct{}) {
	n := 0
	for {
		select {
		case <-stop:
			return
		default:
		}

		n++
		name := fmt.Sprintf("cell-%d", n)
		delay := time.Duration(50+rand.Intn(400)) * time.Millisecond

		c := pool.MkCell(nil, latticetest.MaxInt{}, func(comp *lattice.Completer[int]) lattice.Outcome[int] {
			time.Sleep(delay)
			return lattice.Final(n)
		}).WithCellName(name)
		c.Trigger()

		time.Sleep(200 * time.Millisecond)
	}
}
