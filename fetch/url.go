// Package fetch provides convenience input sources for uploads: downloading
// a dataset file from a URL or reading it from an S3 bucket, so the bytes can
// be fed straight into the chunked-upload pipeline.
package fetch

import (
	"context"
	"net/http"

	"github.com/melbahja/got"
)

// FromURL downloads the file at url to dest. The download runs through got,
// which fetches ranges in parallel when the server supports them. Pass a nil
// client to use the default one.
func FromURL(ctx context.Context, client *http.Client, url, dest string) error {
	downloader := got.New()
	if client != nil {
		downloader.Client = client
	}

	return downloader.Do(got.NewDownload(ctx, url, dest))
}
