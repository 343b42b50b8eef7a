package storage

import (
	"context"
	"errors"
	"time"

	"sitewatch/internal/models"
)

// ErrNotFound is returned when a requested resource is not found.
var ErrNotFound = errors.New("not found")

// Storer defines the interface for storage operations on sites and their
// check history. Sites are keyed by normalized URL; UpsertSite overwrites
// an existing record for the same URL.
//
// Deleting a site intentionally keeps its check history so trend queries
// keep working across remove/re-add cycles.
type Storer interface {
	UpsertSite(ctx context.Context, site *models.Site) error
	GetSite(ctx context.Context, url string) (*models.Site, error)
	ListSites(ctx context.Context) ([]models.Site, error)
	DeleteSite(ctx context.Context, url string) error

	AppendCheckHistory(ctx context.Context, entry *models.CheckEntry) error
	RecentChecks(ctx context.Context, url string, since time.Time) ([]models.CheckEntry, error)
}
