package chunkstream

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// SendFunc transmits one chunk. It blocks until the chunk is acknowledged or
// the transfer fails.
type SendFunc func(ctx context.Context, chunk Chunk) error

// Result records the completion of one chunk transfer.
type Result struct {
	SeqNum        int
	ByteOffset    int64
	EndByteOffset int64
}

// Pool sends chunks through a fixed number of concurrent workers. The worker
// count is fixed for the lifetime of a Drain call; completion order across
// workers carries no relation to sequence order.
type Pool struct {
	workers int
}

// NewPool creates a Pool with the given worker count. Counts below 1 are
// clamped to 1.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Drain pulls every chunk from reader and transmits each through send,
// returning a completion record per chunk. A single producer feeds the
// workers through a bounded queue, so the reader is only ever read
// sequentially. The first chunk is read before any worker is started: an
// empty stream spawns no goroutines and yields an empty result set.
//
// On the first send failure the pool stops admitting chunks and returns that
// error once every in-flight transfer has returned. In-flight transfers are
// not cancelled, but their results are discarded; chunks still queued when
// the failure registers are dropped unsent. Chunks are never resent.
func (p *Pool) Drain(ctx context.Context, reader *Reader, send SendFunc) ([]Result, error) {
	first, err := reader.Next()
	if err == io.EOF {
		return []Result{}, nil
	}
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		results  []Result
		firstErr error
	)
	done := make(chan struct{})
	var closeOnce sync.Once

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		closeOnce.Do(func() { close(done) })
	}

	chunks := make(chan Chunk, p.workers)
	go func() {
		defer close(chunks)
		chunk := first
		for {
			select {
			case chunks <- chunk:
			case <-done:
				return
			case <-ctx.Done():
				fail(ctx.Err())
				return
			}

			var err error
			chunk, err = reader.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				fail(err)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range chunks {
				select {
				case <-done:
					return
				default:
				}
				if err := send(ctx, chunk); err != nil {
					fail(fmt.Errorf("send chunk %d: %w", chunk.SeqNum, err))
					return
				}
				mu.Lock()
				if firstErr == nil {
					results = append(results, Result{
						SeqNum:        chunk.SeqNum,
						ByteOffset:    chunk.ByteOffset,
						EndByteOffset: chunk.EndByteOffset,
					})
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
