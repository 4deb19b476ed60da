// Package socrata is a client for the Socrata dataset-publishing API. It
// models revisions, sources and jobs as resources, and uploads file bytes
// through a chunked, parallel pipeline.
//
// Typical flow: open a revision, create an upload source on it, push the file
// through one of the typed upload methods, wait for the source to finish
// processing, then apply the revision.
package socrata

import (
	"github.com/dlboyd/socrata-go/api"
	"github.com/dlboyd/socrata-go/revision"
	"github.com/dlboyd/socrata-go/source"
)

// Client bundles the resource collections of one Socrata domain.
type Client struct {
	API       *api.Client
	Revisions *revision.Revisions
	Sources   *source.Sources
}

// New creates a Client for the given config.
func New(cfg api.Config) (*Client, error) {
	apiClient, err := api.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		API:       apiClient,
		Revisions: revision.NewRevisions(apiClient),
		Sources:   source.NewSources(apiClient),
	}, nil
}
