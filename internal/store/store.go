// Package store holds the brief store: a byte-level blob API with
// whole-object puts, and the path layout campaigns are stored under.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/creatives-backend/internal/domain/campaign"
)

var ErrNotFound = errors.New("not found")

// BlobStore is the storage contract every backend satisfies. Put must be
// atomic per object. List returns paths in lexical order.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, prefix string) error
}

const Root = "/briefs"

func CampaignPrefix(campaignID string) string {
	return Root + "/" + campaignID + "/"
}

func BriefPath(campaignID string) string {
	return CampaignPrefix(campaignID) + "brief.json"
}

func MetadataPath(campaignID string) string {
	return CampaignPrefix(campaignID) + "metadata.json"
}

func AssetPath(campaignID, productID, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("%sassets/%s.%s", CampaignPrefix(campaignID), productID, ext)
}

// CreativePath is {campaign}/products/{product}/{ratio-slug}/{product}.png.
func CreativePath(campaignID, productID string, ar campaign.AspectRatio) string {
	return fmt.Sprintf("%sproducts/%s/%s/%s.png", CampaignPrefix(campaignID), productID, ar.Slug(), productID)
}

func LogsPrefix(campaignID string) string {
	return CampaignPrefix(campaignID) + "logs/"
}

// logTimeLayout sorts lexically in chronological order.
const logTimeLayout = "20060102T150405.000000000Z"

// LogPath builds a sortable log document path. suffix disambiguates
// entries written within the same nanosecond.
func LogPath(campaignID string, ts time.Time, event campaign.Event, productID, suffix string) string {
	name := ts.UTC().Format(logTimeLayout) + "-" + string(event)
	if productID != "" {
		name += "-" + productID
	}
	if suffix != "" {
		name += "-" + suffix
	}
	return LogsPrefix(campaignID) + name + ".json"
}

// CampaignIDFromPath extracts the campaign id from any path under Root.
func CampaignIDFromPath(p string) (string, bool) {
	rest, ok := strings.CutPrefix(p, Root+"/")
	if !ok {
		return "", false
	}
	id, _, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
