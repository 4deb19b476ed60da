package source

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Content types accepted by the upload pipeline.
const (
	ContentTypeCSV       = "text/csv"
	ContentTypeXLS       = "application/vnd.ms-excel"
	ContentTypeXLSX      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeTSV       = "text/tab-separated-values"
	ContentTypeShapefile = "application/zip"
	ContentTypeKML       = "application/vnd.google-earth.kml+xml"
	ContentTypeGeoJSON   = "application/vnd.geo+json"
	ContentTypeBlob      = "application/octet-stream"
)

// CSV uploads a CSV stream.
func (s *Source) CSV(ctx context.Context, r io.Reader) (*Source, error) {
	return s.Bytes(ctx, r, ContentTypeCSV)
}

// CSVGzipped uploads a gzip-compressed CSV stream, decompressing on the fly.
func (s *Source) CSVGzipped(ctx context.Context, r io.Reader) (*Source, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer func() {
		_ = zr.Close()
	}()

	return s.CSV(ctx, zr)
}

// XLS uploads an XLS stream.
func (s *Source) XLS(ctx context.Context, r io.Reader) (*Source, error) {
	return s.Bytes(ctx, r, ContentTypeXLS)
}

// XLSX uploads an XLSX stream.
func (s *Source) XLSX(ctx context.Context, r io.Reader) (*Source, error) {
	return s.Bytes(ctx, r, ContentTypeXLSX)
}

// TSV uploads a TSV stream.
func (s *Source) TSV(ctx context.Context, r io.Reader) (*Source, error) {
	return s.Bytes(ctx, r, ContentTypeTSV)
}

// Shapefile uploads a zipped shapefile archive.
func (s *Source) Shapefile(ctx context.Context, r io.Reader) (*Source, error) {
	return s.Bytes(ctx, r, ContentTypeShapefile)
}

// KML uploads a KML stream.
func (s *Source) KML(ctx context.Context, r io.Reader) (*Source, error) {
	return s.Bytes(ctx, r, ContentTypeKML)
}

// GeoJSON uploads a GeoJSON stream.
func (s *Source) GeoJSON(ctx context.Context, r io.Reader) (*Source, error) {
	return s.Bytes(ctx, r, ContentTypeGeoJSON)
}

// Blob uploads a file that must not be parsed as a data file, such as an
// image or a PDF. Parsing is disabled on the source before any bytes are
// sent, then the stream runs through the same chunk pipeline.
func (s *Source) Blob(ctx context.Context, r io.Reader) (*Source, error) {
	src := s
	if s.ParseOptions.ParseSource {
		var err error
		src, err = s.DisableParsing(ctx)
		if err != nil {
			return nil, fmt.Errorf("disable parsing: %w", err)
		}
	}

	return src.Bytes(ctx, r, ContentTypeBlob)
}
