// Package chunkstream splits a byte stream into sequentially numbered,
// contiguous chunks and pushes them through a fixed-size pool of concurrent
// senders. It is the concurrency core of the chunked-upload pipeline.
package chunkstream

import (
	"fmt"
	"io"
	"sync"
)

// Chunk is a contiguous, sequence-numbered slice of the input stream.
// Its byte range is the half-open interval [ByteOffset, EndByteOffset).
type Chunk struct {
	SeqNum        int
	ByteOffset    int64
	EndByteOffset int64
	Payload       []byte
}

// Reader splits a byte stream into chunks of at most chunkSize bytes.
// Safe for concurrent use: reading from the stream and advancing the
// sequence/offset cursor happen under one critical section, so chunks never
// overlap and sequence numbers are dense regardless of caller concurrency.
type Reader struct {
	mu        sync.Mutex
	src       io.Reader
	chunkSize int
	seqNum    int
	offset    int64
	done      bool
}

// NewReader creates a Reader over src. Chunk sizes below 1 are clamped to 1.
func NewReader(src io.Reader, chunkSize int) *Reader {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &Reader{
		src:       src,
		chunkSize: chunkSize,
	}
}

// Next returns the next chunk of the stream, or io.EOF once the stream is
// exhausted. A stream whose length is an exact multiple of the chunk size
// terminates on the subsequent empty read, without a zero-length final chunk.
// No chunk is ever delivered twice.
func (r *Reader) Next() (Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return Chunk{}, io.EOF
	}

	buf := make([]byte, r.chunkSize)
	n, err := io.ReadFull(r.src, buf)
	if n == 0 {
		r.done = true
		if err == io.EOF || err == nil {
			return Chunk{}, io.EOF
		}
		return Chunk{}, fmt.Errorf("read stream at offset %d: %w", r.offset, err)
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		// Partial chunk, the stream ends here.
		r.done = true
	} else if err != nil {
		r.done = true
		return Chunk{}, fmt.Errorf("read stream at offset %d: %w", r.offset, err)
	}

	chunk := Chunk{
		SeqNum:        r.seqNum,
		ByteOffset:    r.offset,
		EndByteOffset: r.offset + int64(n),
		Payload:       buf[:n],
	}
	r.seqNum++
	r.offset += int64(n)

	return chunk, nil
}
