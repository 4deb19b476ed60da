package source

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedUploads_SetContentType(t *testing.T) {
	tests := []struct {
		name        string
		upload      func(s *Source, r io.Reader) (*Source, error)
		contentType string
	}{
		{
			name:        "csv",
			upload:      func(s *Source, r io.Reader) (*Source, error) { return s.CSV(context.Background(), r) },
			contentType: "text/csv",
		},
		{
			name:        "xls",
			upload:      func(s *Source, r io.Reader) (*Source, error) { return s.XLS(context.Background(), r) },
			contentType: "application/vnd.ms-excel",
		},
		{
			name:        "xlsx",
			upload:      func(s *Source, r io.Reader) (*Source, error) { return s.XLSX(context.Background(), r) },
			contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		},
		{
			name:        "tsv",
			upload:      func(s *Source, r io.Reader) (*Source, error) { return s.TSV(context.Background(), r) },
			contentType: "text/tab-separated-values",
		},
		{
			name:        "shapefile",
			upload:      func(s *Source, r io.Reader) (*Source, error) { return s.Shapefile(context.Background(), r) },
			contentType: "application/zip",
		},
		{
			name:        "kml",
			upload:      func(s *Source, r io.Reader) (*Source, error) { return s.KML(context.Background(), r) },
			contentType: "application/vnd.google-earth.kml+xml",
		},
		{
			name:        "geojson",
			upload:      func(s *Source, r io.Reader) (*Source, error) { return s.GeoJSON(context.Background(), r) },
			contentType: "application/vnd.geo+json",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakePublishing(t)
			server := httptest.NewServer(fake.handler())
			defer server.Close()

			src := newTestSource(t, server)
			_, err := tt.upload(src, bytes.NewReader([]byte("payload")))
			require.NoError(t, err)

			assert.Equal(t, []string{tt.contentType}, fake.initiates)
		})
	}
}

func TestBlob_DisablesParsingBeforeUploading(t *testing.T) {
	fake := newFakePublishing(t)
	fake.resource = map[string]interface{}{
		"id":            42,
		"parse_options": map[string]interface{}{"parse_source": false},
	}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	src := newTestSource(t, server)
	src.ParseOptions.ParseSource = true

	_, err := src.Blob(context.Background(), bytes.NewReader([]byte("not a data file")))
	require.NoError(t, err)

	require.Len(t, fake.updates, 1)
	parseOptions, ok := fake.updates[0]["parse_options"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, parseOptions["parse_source"])

	assert.Equal(t, []string{ContentTypeBlob}, fake.initiates)
}

func TestBlob_SkipsToggleWhenParsingAlreadyDisabled(t *testing.T) {
	fake := newFakePublishing(t)
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	src := newTestSource(t, server)

	_, err := src.Blob(context.Background(), bytes.NewReader([]byte("bytes")))
	require.NoError(t, err)

	assert.Empty(t, fake.updates)
	assert.Equal(t, []string{ContentTypeBlob}, fake.initiates)
}

func TestCSVGzipped_DecompressesOnTheFly(t *testing.T) {
	fake := newFakePublishing(t)
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	plain := []byte("id,name\n1,ada\n2,grace\n")
	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	_, err := zw.Write(plain)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	src := newTestSource(t, server)
	_, err = src.CSVGzipped(context.Background(), &compressed)
	require.NoError(t, err)

	assert.Equal(t, []string{ContentTypeCSV}, fake.initiates)
	assert.Equal(t, plain, fake.chunkBodies[0])
}
