// Package source models the source resource of the Socrata publishing API: a
// file upload (or view reference) that a revision ingests. It contains the
// chunked-upload coordinator and the typed upload entry points.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/dlboyd/socrata-go/api"
)

const basePath = "/api/publishing/v1/source"

// SourceType describes how a source came to be.
type SourceType struct {
	Type     string `json:"type"`
	Filename string `json:"filename,omitempty"`
}

// ParseOptions control how the service parses the uploaded bytes.
type ParseOptions struct {
	ParseSource bool `json:"parse_source"`
}

// Source is one source resource. Snapshot fields reflect the state at the
// time the resource was last fetched; Show returns a fresh snapshot.
type Source struct {
	ID           int          `json:"id"`
	SourceType   SourceType   `json:"source_type"`
	ParseOptions ParseOptions `json:"parse_options"`
	CreatedAt    *time.Time   `json:"created_at"`
	FinishedAt   *time.Time   `json:"finished_at"`
	FailedAt     *time.Time   `json:"failed_at"`

	client *api.Client
	logger log.Logger

	// Set by AddToRevision; identifies the revision the source belongs to.
	fourfour    string
	revisionSeq int
}

// Sources provides access to the source collection.
type Sources struct {
	client *api.Client
	logger log.Logger
}

// NewSources creates a Sources collection on top of an API client.
func NewSources(client *api.Client) *Sources {
	return &Sources{
		client: client,
		logger: client.Logger(),
	}
}

type sourceEnvelope struct {
	Resource Source `json:"resource"`
}

// CreateUpload creates a new upload source for a file with the given name.
// The bytes are transmitted separately through one of the typed upload
// methods on the returned Source.
func (s *Sources) CreateUpload(ctx context.Context, filename string) (*Source, error) {
	body := map[string]interface{}{
		"source_type": map[string]interface{}{
			"type":     "upload",
			"filename": filename,
		},
	}

	var resp sourceEnvelope
	err := s.client.Post(ctx, basePath, body, &resp)
	if err != nil {
		return nil, fmt.Errorf("create upload source: %w", err)
	}

	return s.attach(resp.Resource), nil
}

// Lookup fetches the source with the given id.
func (s *Sources) Lookup(ctx context.Context, id int) (*Source, error) {
	var resp sourceEnvelope
	err := s.client.Get(ctx, fmt.Sprintf("%s/%d", basePath, id), &resp)
	if err != nil {
		return nil, fmt.Errorf("lookup source %d: %w", id, err)
	}

	return s.attach(resp.Resource), nil
}

func (s *Sources) attach(src Source) *Source {
	src.client = s.client
	src.logger = s.logger
	return &src
}

func (s *Source) path() string {
	return fmt.Sprintf("%s/%d", basePath, s.ID)
}

func (s *Source) attach(src Source) *Source {
	src.client = s.client
	src.logger = s.logger
	src.fourfour = s.fourfour
	src.revisionSeq = s.revisionSeq
	return &src
}

// Show fetches a fresh snapshot of the source.
func (s *Source) Show(ctx context.Context) (*Source, error) {
	var resp sourceEnvelope
	err := s.client.Get(ctx, s.path(), &resp)
	if err != nil {
		return nil, fmt.Errorf("show source %d: %w", s.ID, err)
	}

	return s.attach(resp.Resource), nil
}

// AddToRevision associates the source with the given revision.
func (s *Source) AddToRevision(ctx context.Context, fourfour string, revisionSeq int) (*Source, error) {
	body := map[string]interface{}{
		"revision": map[string]interface{}{
			"fourfour":     fourfour,
			"revision_seq": revisionSeq,
		},
	}

	var resp sourceEnvelope
	err := s.client.Patch(ctx, s.path(), body, &resp)
	if err != nil {
		return nil, fmt.Errorf("add source %d to revision %s: %w", s.ID, fourfour, err)
	}

	next := s.attach(resp.Resource)
	next.fourfour = fourfour
	next.revisionSeq = revisionSeq
	return next, nil
}

// Load forces a view source to load.
func (s *Source) Load(ctx context.Context) (*Source, error) {
	var resp sourceEnvelope
	err := s.client.Put(ctx, s.path()+"/load", map[string]interface{}{}, &resp)
	if err != nil {
		return nil, fmt.Errorf("load source %d: %w", s.ID, err)
	}

	return s.attach(resp.Resource), nil
}

// Update posts a partial update to the source resource.
func (s *Source) Update(ctx context.Context, body interface{}) (*Source, error) {
	var resp sourceEnvelope
	err := s.client.Post(ctx, s.path(), body, &resp)
	if err != nil {
		return nil, fmt.Errorf("update source %d: %w", s.ID, err)
	}

	return s.attach(resp.Resource), nil
}

// DisableParsing turns off automatic parsing of the uploaded bytes, so the
// service stores them as-is. Required before uploading a blob.
func (s *Source) DisableParsing(ctx context.Context) (*Source, error) {
	return s.Update(ctx, map[string]interface{}{
		"parse_options": map[string]interface{}{
			"parse_source": false,
		},
	})
}

// UIURL returns the URL of the source's preview page in the UI. The source
// must be attached to a revision first, since the preview lives under the
// revision's landing page.
func (s *Source) UIURL() (string, error) {
	if s.fourfour == "" {
		return "", fmt.Errorf("source %d is not attached to a revision", s.ID)
	}

	return fmt.Sprintf("%s/d/%s/revisions/%d/sources/%d/preview",
		s.client.BaseURL(), s.fourfour, s.revisionSeq, s.ID), nil
}
