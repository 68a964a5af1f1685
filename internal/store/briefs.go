package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yungbote/creatives-backend/internal/domain/campaign"
)

// Briefs reads and writes brief and metadata documents. Every write replaces
// the whole document.
type Briefs struct {
	blobs BlobStore
}

func NewBriefs(blobs BlobStore) *Briefs {
	return &Briefs{blobs: blobs}
}

func (r *Briefs) Blobs() BlobStore { return r.blobs }

func (r *Briefs) GetBrief(ctx context.Context, campaignID string) (*campaign.Brief, error) {
	raw, err := r.blobs.Get(ctx, BriefPath(campaignID))
	if err != nil {
		return nil, err
	}
	var b campaign.Brief
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode brief %s: %w", campaignID, err)
	}
	return &b, nil
}

func (r *Briefs) PutBrief(ctx context.Context, b *campaign.Brief) error {
	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode brief %s: %w", b.CampaignID, err)
	}
	if err := r.blobs.Put(ctx, BriefPath(b.CampaignID), raw); err != nil {
		return fmt.Errorf("write brief %s: %w", b.CampaignID, err)
	}
	return nil
}

func (r *Briefs) GetMetadata(ctx context.Context, campaignID string) (*campaign.Metadata, error) {
	raw, err := r.blobs.Get(ctx, MetadataPath(campaignID))
	if err != nil {
		return nil, err
	}
	var m campaign.Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", campaignID, err)
	}
	return &m, nil
}

func (r *Briefs) PutMetadata(ctx context.Context, m *campaign.Metadata) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata %s: %w", m.CampaignID, err)
	}
	if err := r.blobs.Put(ctx, MetadataPath(m.CampaignID), raw); err != nil {
		return fmt.Errorf("write metadata %s: %w", m.CampaignID, err)
	}
	return nil
}

// ListCampaigns returns every campaign id that has a brief document.
func (r *Briefs) ListCampaigns(ctx context.Context) ([]string, error) {
	paths, err := r.blobs.List(ctx, Root+"/")
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, p := range paths {
		id, ok := CampaignIDFromPath(p)
		if !ok || p != BriefPath(id) {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (r *Briefs) DeleteCampaign(ctx context.Context, campaignID string) error {
	return r.blobs.Delete(ctx, CampaignPrefix(campaignID))
}
