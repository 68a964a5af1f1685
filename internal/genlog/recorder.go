// Package genlog writes generation milestones as one JSON document each
// under a campaign's logs/ prefix.
package genlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/creatives-backend/internal/domain/campaign"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
	"github.com/yungbote/creatives-backend/internal/store"
)

const writeTimeout = 10 * time.Second

type Recorder struct {
	blobs store.BlobStore
	log   *logger.Logger
	now   func() time.Time
}

func NewRecorder(blobs store.BlobStore, log *logger.Logger) *Recorder {
	return &Recorder{
		blobs: blobs,
		log:   log.With("component", "GenerationLog"),
		now:   time.Now,
	}
}

// Record appends one entry. It never returns an error: write failures, and
// panics from the store, are logged and dropped.
func (r *Recorder) Record(ctx context.Context, event campaign.Event, campaignID, productID string, payload map[string]any) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Generation log write panicked", "event", event, "campaign_id", campaignID, "panic", p)
		}
	}()

	entry := campaign.LogEntry{
		Event:      event,
		CampaignID: campaignID,
		ProductID:  productID,
		Timestamp:  r.now().UTC(),
		Payload:    payload,
	}
	raw, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		r.log.Warn("Generation log encode failed", "event", event, "campaign_id", campaignID, "error", err)
		return
	}
	path := store.LogPath(campaignID, entry.Timestamp, event, productID, uuid.NewString()[:8])

	// Logs are still written when the run's context was canceled.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := r.blobs.Put(wctx, path, raw); err != nil {
		r.log.Warn("Generation log write failed",
			"event", event,
			"campaign_id", campaignID,
			"product_id", productID,
			"path", path,
			"error", err,
		)
		return
	}
	r.log.Debug("Generation log recorded", "event", event, "campaign_id", campaignID, "product_id", productID)
}

// List reads a campaign's entries back in chronological order.
func (r *Recorder) List(ctx context.Context, campaignID string) ([]campaign.LogEntry, error) {
	paths, err := r.blobs.List(ctx, store.LogsPrefix(campaignID))
	if err != nil {
		return nil, fmt.Errorf("list logs %s: %w", campaignID, err)
	}
	out := make([]campaign.LogEntry, 0, len(paths))
	for _, p := range paths {
		raw, err := r.blobs.Get(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("read log %s: %w", p, err)
		}
		var e campaign.LogEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			r.log.Warn("Skipping unreadable log entry", "path", p, "error", err)
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
