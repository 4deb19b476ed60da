package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/docker/go-units"

	"github.com/dlboyd/socrata-go/source/chunkstream"
)

// ErrContiguity is returned when the completed chunk ranges do not tile the
// uploaded stream. It indicates a reader bug; the upload is never committed
// with a corrected offset.
var ErrContiguity = errors.New("chunk ranges do not tile the uploaded stream")

type initiateResponse struct {
	PreferredChunkSize         int `json:"preferred_chunk_size"`
	PreferredUploadParallelism int `json:"preferred_upload_parallelism"`
}

func (s *Source) initiate(ctx context.Context, contentType string) (initiateResponse, error) {
	body := map[string]interface{}{
		"content_type": contentType,
	}

	var resp initiateResponse
	err := s.client.Post(ctx, s.path()+"/initiate", body, &resp)
	if err != nil {
		return initiateResponse{}, err
	}

	return resp, nil
}

func (s *Source) sendChunk(ctx context.Context, chunk chunkstream.Chunk) error {
	path := fmt.Sprintf("%s/chunk/%d/%d", s.path(), chunk.SeqNum, chunk.ByteOffset)
	err := s.client.PostBytes(ctx, path, "application/octet-stream", chunk.Payload, nil)
	if err != nil {
		return err
	}

	s.logger.Debugf("Sent chunk %d [%d, %d)", chunk.SeqNum, chunk.ByteOffset, chunk.EndByteOffset)
	return nil
}

func (s *Source) commit(ctx context.Context, seqNum int, endByteOffset int64) error {
	path := fmt.Sprintf("%s/commit/%d/%d", s.path(), seqNum, endByteOffset)
	return s.client.Post(ctx, path, nil, nil)
}

// Bytes uploads a stream into the source, split into chunks of the size the
// service advertises and sent by the advertised number of parallel workers.
// The commit offset is the logical end of the highest-sequence chunk, which
// by the contiguity of chunk ranges equals the total bytes read, regardless
// of the order in which workers finished. Any chunk or commit failure aborts
// the whole upload; nothing already sent is committed and the caller must
// re-upload from the beginning.
//
// It is usually more convenient to call one of CSV, XLS, XLSX, TSV,
// Shapefile, KML, GeoJSON or Blob, which set the content type for you.
func (s *Source) Bytes(ctx context.Context, stream io.Reader, contentType string) (*Source, error) {
	init, err := s.initiate(ctx, contentType)
	if err != nil {
		return nil, fmt.Errorf("initiate upload: %w", err)
	}
	s.logger.Debugf("Upload negotiated: %s chunks, parallelism %d",
		units.HumanSizeWithPrecision(float64(init.PreferredChunkSize), 3), init.PreferredUploadParallelism)

	reader := chunkstream.NewReader(stream, init.PreferredChunkSize)
	pool := chunkstream.NewPool(init.PreferredUploadParallelism)

	results, err := pool.Drain(ctx, reader, s.sendChunk)
	if err != nil {
		return nil, fmt.Errorf("upload chunks: %w", err)
	}

	if len(results) == 0 {
		// Empty stream: no chunks were sent, there is nothing to commit.
		return s.Show(ctx)
	}

	last := results[0]
	var total int64
	for _, res := range results {
		total += res.EndByteOffset - res.ByteOffset
		if res.SeqNum > last.SeqNum {
			last = res
		}
	}
	if last.EndByteOffset != total {
		return nil, fmt.Errorf("commit offset %d does not match %d bytes read: %w",
			last.EndByteOffset, total, ErrContiguity)
	}

	s.logger.Debugf("Committing %d chunks, %s total",
		len(results), units.HumanSizeWithPrecision(float64(total), 3))
	err = s.commit(ctx, last.SeqNum, last.EndByteOffset)
	if err != nil {
		return nil, fmt.Errorf("commit upload: %w", err)
	}

	return s.Show(ctx)
}
