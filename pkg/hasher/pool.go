package hasher

import (
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/pkg/logger"
)

// HashTask carries a discovered file and its discovery sequence number.
type HashTask struct {
	Seq     int
	Path    string
	Size    int64
	ModTime time.Time
}

type HashResult struct {
	HashTask
	Checksum string
	Error    error
}

// HashPool hashes files on an ants goroutine pool. Results arrive in completion
// order; use Ordered to consume them in discovery order.
type HashPool struct {
	hasher  *Hasher
	workers int
	tasks   chan HashTask
	results chan HashResult
	wg      sync.WaitGroup
	pool    *ants.Pool
}

func NewHashPool(h *Hasher, workers int) *HashPool {
	if workers < 1 {
		workers = 1
	}
	return &HashPool{
		hasher:  h,
		workers: workers,
		tasks:   make(chan HashTask, internal.DefaultBufferSize),
		results: make(chan HashResult, internal.DefaultBufferSize),
	}
}

func (p *HashPool) Start() error {
	logger.Get().Debug().Msgf("starting hash pool with %d workers", p.workers)

	pool, err := ants.NewPool(p.workers)
	if err != nil {
		return err
	}
	p.pool = pool

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		if err := p.pool.Submit(p.worker); err != nil {
			p.wg.Done()
			return err
		}
	}
	return nil
}

func (p *HashPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		sum, err := p.hasher.CalculateHash(task.Path)
		p.results <- HashResult{HashTask: task, Checksum: sum, Error: err}
	}
}

func (p *HashPool) AddTask(task HashTask) {
	p.tasks <- task
}

func (p *HashPool) Results() <-chan HashResult {
	return p.results
}

// Close stops accepting tasks. The results channel is closed once every
// queued task has been hashed.
func (p *HashPool) Close() {
	close(p.tasks)
	go func() {
		p.wg.Wait()
		close(p.results)
		if p.pool != nil {
			p.pool.Release()
		}
	}()
}

// Ordered re-sequences results by HashTask.Seq, starting at 0, and calls fn for
// each one in turn. Sequence numbers must be contiguous.
func Ordered(results <-chan HashResult, fn func(HashResult)) {
	pending := make(map[int]HashResult)
	next := 0
	for r := range results {
		pending[r.Seq] = r
		for {
			cur, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			fn(cur)
			next++
		}
	}
}
