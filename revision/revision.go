// Package revision models the revision resource of the Socrata publishing
// API: an open change to a dataset that sources are attached to and that is
// eventually applied or discarded.
package revision

import (
	"context"
	"fmt"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/dlboyd/socrata-go/api"
	"github.com/dlboyd/socrata-go/source"
)

// Revision is one open revision of a dataset.
type Revision struct {
	ID          int                    `json:"id"`
	Fourfour    string                 `json:"fourfour"`
	RevisionSeq int                    `json:"revision_seq"`
	Metadata    map[string]interface{} `json:"metadata"`
	CreatedAt   *time.Time             `json:"created_at"`
	ClosedAt    *time.Time             `json:"closed_at"`

	client *api.Client
	logger log.Logger
}

// Revisions provides access to the revisions of datasets on one domain.
type Revisions struct {
	client *api.Client
	logger log.Logger
}

// NewRevisions creates a Revisions collection on top of an API client.
func NewRevisions(client *api.Client) *Revisions {
	return &Revisions{
		client: client,
		logger: client.Logger(),
	}
}

type revisionEnvelope struct {
	Resource Revision `json:"resource"`
}

func collectionPath(fourfour string) string {
	return fmt.Sprintf("/api/publishing/v1/revision/%s", fourfour)
}

// Create opens a new revision on the dataset identified by its fourfour.
func (r *Revisions) Create(ctx context.Context, fourfour string) (*Revision, error) {
	var resp revisionEnvelope
	err := r.client.Post(ctx, collectionPath(fourfour), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("create revision on %s: %w", fourfour, err)
	}

	return r.attach(resp.Resource), nil
}

// CreateUsingConfig opens a new revision using a saved configuration.
func (r *Revisions) CreateUsingConfig(ctx context.Context, fourfour, configName string) (*Revision, error) {
	body := map[string]interface{}{
		"config": configName,
	}

	var resp revisionEnvelope
	err := r.client.Post(ctx, collectionPath(fourfour), body, &resp)
	if err != nil {
		return nil, fmt.Errorf("create revision on %s with config %s: %w", fourfour, configName, err)
	}

	return r.attach(resp.Resource), nil
}

// Lookup fetches an existing revision of the dataset.
func (r *Revisions) Lookup(ctx context.Context, fourfour string, revisionSeq int) (*Revision, error) {
	var resp revisionEnvelope
	err := r.client.Get(ctx, fmt.Sprintf("%s/%d", collectionPath(fourfour), revisionSeq), &resp)
	if err != nil {
		return nil, fmt.Errorf("lookup revision %s/%d: %w", fourfour, revisionSeq, err)
	}

	return r.attach(resp.Resource), nil
}

func (r *Revisions) attach(rev Revision) *Revision {
	rev.client = r.client
	rev.logger = r.logger
	return &rev
}

func (rev *Revision) path() string {
	return fmt.Sprintf("%s/%d", collectionPath(rev.Fourfour), rev.RevisionSeq)
}

func (rev *Revision) attach(next Revision) *Revision {
	next.client = rev.client
	next.logger = rev.logger
	return &next
}

// CreateUploadSource creates an upload source bound to this revision. The
// file bytes are sent afterwards through one of the typed upload methods.
func (rev *Revision) CreateUploadSource(ctx context.Context, filename string) (*source.Source, error) {
	src, err := source.NewSources(rev.client).CreateUpload(ctx, filename)
	if err != nil {
		return nil, err
	}

	return src.AddToRevision(ctx, rev.Fourfour, rev.RevisionSeq)
}

// Discard deletes this open revision.
func (rev *Revision) Discard(ctx context.Context) error {
	err := rev.client.Delete(ctx, rev.path())
	if err != nil {
		return fmt.Errorf("discard revision %s/%d: %w", rev.Fourfour, rev.RevisionSeq, err)
	}

	return nil
}

// SetMetadata sets the metadata applied to the view when the revision is
// applied.
func (rev *Revision) SetMetadata(ctx context.Context, meta map[string]interface{}) (*Revision, error) {
	body := map[string]interface{}{
		"metadata": meta,
	}

	var resp revisionEnvelope
	err := rev.client.Put(ctx, rev.path(), body, &resp)
	if err != nil {
		return nil, fmt.Errorf("set metadata on revision %s/%d: %w", rev.Fourfour, rev.RevisionSeq, err)
	}

	return rev.attach(resp.Resource), nil
}

// Apply applies the revision to the view it was opened on, ingesting the
// given output schema. The returned job tracks the asynchronous application.
func (rev *Revision) Apply(ctx context.Context, outputSchemaID int) (*Job, error) {
	body := map[string]interface{}{
		"output_schema_id": outputSchemaID,
	}

	var resp jobEnvelope
	err := rev.client.Put(ctx, rev.path()+"/apply", body, &resp)
	if err != nil {
		return nil, fmt.Errorf("apply revision %s/%d: %w", rev.Fourfour, rev.RevisionSeq, err)
	}

	job := resp.Resource
	job.client = rev.client
	job.logger = rev.logger
	rev.logger.Debugf("Applied revision %s/%d, job %d", rev.Fourfour, rev.RevisionSeq, job.ID)
	return &job, nil
}
