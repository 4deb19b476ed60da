package chunkstream

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_DrainCollectsAllChunks(t *testing.T) {
	data := make([]byte, 250)
	reader := NewReader(bytes.NewReader(data), 100)
	pool := NewPool(4)

	results, err := pool.Drain(context.Background(), reader, func(ctx context.Context, chunk Chunk) error {
		return nil
	})
	require.NoError(t, err)

	sort.Slice(results, func(i, j int) bool { return results[i].SeqNum < results[j].SeqNum })
	assert.Equal(t, []Result{
		{SeqNum: 0, ByteOffset: 0, EndByteOffset: 100},
		{SeqNum: 1, ByteOffset: 100, EndByteOffset: 200},
		{SeqNum: 2, ByteOffset: 200, EndByteOffset: 250},
	}, results)
}

func TestPool_EmptyStreamSendsNothing(t *testing.T) {
	reader := NewReader(bytes.NewReader(nil), 100)
	pool := NewPool(4)

	var sends int32
	results, err := pool.Drain(context.Background(), reader, func(ctx context.Context, chunk Chunk) error {
		atomic.AddInt32(&sends, 1)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, atomic.LoadInt32(&sends))
}

func TestPool_SingleWorkerCompletesInSequenceOrder(t *testing.T) {
	data := make([]byte, 50)
	reader := NewReader(bytes.NewReader(data), 10)
	pool := NewPool(1)

	var seen []int
	results, err := pool.Drain(context.Background(), reader, func(ctx context.Context, chunk Chunk) error {
		seen = append(seen, chunk.SeqNum)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, seen)
}

func TestPool_OutOfOrderCompletionStillCoversStream(t *testing.T) {
	data := make([]byte, 250)
	reader := NewReader(bytes.NewReader(data), 100)
	pool := NewPool(3)

	// Chunk 0 finishes last on purpose.
	results, err := pool.Drain(context.Background(), reader, func(ctx context.Context, chunk Chunk) error {
		if chunk.SeqNum == 0 {
			time.Sleep(50 * time.Millisecond)
		}
		return nil
	})
	require.NoError(t, err)

	maxSeq := results[0]
	var total int64
	for _, res := range results {
		total += res.EndByteOffset - res.ByteOffset
		if res.SeqNum > maxSeq.SeqNum {
			maxSeq = res
		}
	}
	assert.Equal(t, 2, maxSeq.SeqNum)
	assert.Equal(t, int64(250), maxSeq.EndByteOffset)
	assert.Equal(t, int64(250), total)
}

func TestPool_ConcurrencyIsBounded(t *testing.T) {
	data := make([]byte, 4000)
	reader := NewReader(bytes.NewReader(data), 100)
	pool := NewPool(3)

	var current, peak int32
	results, err := pool.Drain(context.Background(), reader, func(ctx context.Context, chunk Chunk) error {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&current, -1)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, results, 40)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestPool_FirstErrorStopsAdmissionAndSurfaces(t *testing.T) {
	data := make([]byte, 10_000)
	reader := NewReader(bytes.NewReader(data), 100)
	pool := NewPool(2)

	sendErr := errors.New("connection reset")
	var sends int32
	_, err := pool.Drain(context.Background(), reader, func(ctx context.Context, chunk Chunk) error {
		atomic.AddInt32(&sends, 1)
		if chunk.SeqNum == 1 {
			return sendErr
		}
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sendErr)
	assert.Contains(t, err.Error(), "chunk 1")

	// Far fewer than the 100 chunks of the stream should have been admitted.
	assert.Less(t, atomic.LoadInt32(&sends), int32(100))
}

func TestPool_QueuedChunksAreNotSentAfterFailure(t *testing.T) {
	data := make([]byte, 1000)
	reader := NewReader(bytes.NewReader(data), 100)
	pool := NewPool(2)

	sendErr := errors.New("connection reset")
	var mu sync.Mutex
	var sent []int
	_, err := pool.Drain(context.Background(), reader, func(ctx context.Context, chunk Chunk) error {
		mu.Lock()
		sent = append(sent, chunk.SeqNum)
		mu.Unlock()
		switch chunk.SeqNum {
		case 0:
			return sendErr
		case 1:
			// Keep the surviving worker in flight until the failure has
			// registered, so chunks 2+ sit queued behind it.
			time.Sleep(50 * time.Millisecond)
		}
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sendErr)

	mu.Lock()
	defer mu.Unlock()
	for _, seq := range sent {
		assert.LessOrEqual(t, seq, 1, "chunks queued after the failure must be dropped unsent")
	}
}

func TestPool_CancelledContextStopsDrain(t *testing.T) {
	data := make([]byte, 10_000)
	reader := NewReader(bytes.NewReader(data), 100)
	pool := NewPool(2)

	ctx, cancel := context.WithCancel(context.Background())

	var sends int32
	var once sync.Once
	_, err := pool.Drain(ctx, reader, func(ctx context.Context, chunk Chunk) error {
		atomic.AddInt32(&sends, 1)
		once.Do(cancel)
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
