package sim

import (
	"runtime"
	"sync"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/mudtrack/components"
	"github.com/pthm-cable/mudtrack/systems"
	"github.com/pthm-cable/mudtrack/terrain"
)

// wheelSnapshot captures everything one wheel update reads.
type wheelSnapshot struct {
	Entity  ecs.Entity
	Spec    components.WheelSpec
	Input   components.WheelInput
	Weather terrain.WeatherProperties
	Prev    systems.WheelRecord
}

// wheelResult is the computed next record, applied after the parallel phase.
type wheelResult struct {
	Record systems.WheelRecord
	Err    error
}

// workChunk represents a range of wheels for a worker to process.
type workChunk struct {
	start, end int
}

// parallelState holds resources for the parallel compute phase.
type parallelState struct {
	snapshots  []wheelSnapshot
	results    []wheelResult
	numWorkers int
	threshold  int

	// Worker pool channels
	workChan chan workChunk
	doneChan chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newParallelState(workers, threshold int) *parallelState {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &parallelState{
		numWorkers: workers,
		threshold:  threshold,
		snapshots:  make([]wheelSnapshot, 0, 64),
		results:    make([]wheelResult, 0, 64),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers(s *Sim) {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(s)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *parallelState) worker(s *Sim) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			s.computeChunk(chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// computeParallel dispatches work to the worker pool and waits for it.
func (s *Sim) computeParallel(n int) {
	p := s.parallel
	if !p.running {
		p.startWorkers(s)
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}

// computeChunk steps a range of wheels. It reads only its own snapshots and
// the shared read-only params, ground and tables.
func (s *Sim) computeChunk(i0, i1 int) {
	for i := i0; i < i1; i++ {
		snap := &s.parallel.snapshots[i]
		res := &s.parallel.results[i]
		res.Record, res.Err = systems.StepWheel(s.params, s.ground, &snap.Spec, &snap.Input, snap.Weather, snap.Prev)
	}
}
