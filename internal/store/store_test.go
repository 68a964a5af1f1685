package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/creatives-backend/internal/domain/campaign"
)

func TestLayoutPaths(t *testing.T) {
	assert.Equal(t, "/briefs/c/brief.json", BriefPath("c"))
	assert.Equal(t, "/briefs/c/metadata.json", MetadataPath("c"))
	assert.Equal(t, "/briefs/c/assets/b.jpg", AssetPath("c", "b", ""))
	assert.Equal(t, "/briefs/c/assets/b.png", AssetPath("c", "b", ".PNG"))
	assert.Equal(t, "/briefs/c/products/a/9-16/a.png", CreativePath("c", "a", campaign.AspectPortrait))

	ts := time.Date(2025, 3, 4, 5, 6, 7, 8, time.UTC)
	assert.Equal(t,
		"/briefs/c/logs/20250304T050607.000000008Z-generation-initiated-a-x1.json",
		LogPath("c", ts, campaign.EventGenerationInitiated, "a", "x1"),
	)
}

func TestLogPathsSortChronologically(t *testing.T) {
	base := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	earlier := LogPath("c", base.Add(999*time.Millisecond), campaign.EventGenerationStart, "", "")
	later := LogPath("c", base.Add(time.Second), campaign.EventGenerationComplete, "", "")
	assert.Less(t, earlier, later)
}

func TestCampaignIDFromPath(t *testing.T) {
	id, ok := CampaignIDFromPath("/briefs/summer/logs/x.json")
	require.True(t, ok)
	assert.Equal(t, "summer", id)

	_, ok = CampaignIDFromPath("/other/summer/brief.json")
	assert.False(t, ok)
}

func TestMemoryPutGetListDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Put(ctx, "/briefs/a/brief.json", []byte("1")))
	require.NoError(t, m.Put(ctx, "/briefs/a/logs/2.json", []byte("2")))
	require.NoError(t, m.Put(ctx, "/briefs/b/brief.json", []byte("3")))

	got, err := m.Get(ctx, "/briefs/a/brief.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	got[0] = 'x'
	again, _ := m.Get(ctx, "/briefs/a/brief.json")
	assert.Equal(t, []byte("1"), again, "stored bytes must not alias caller slices")

	_, err = m.Get(ctx, "/briefs/missing/brief.json")
	assert.ErrorIs(t, err, ErrNotFound)

	paths, err := m.List(ctx, "/briefs/a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"/briefs/a/brief.json", "/briefs/a/logs/2.json"}, paths)

	require.NoError(t, m.Delete(ctx, "/briefs/a/"))
	assert.Equal(t, 1, m.Len())
}

func TestBriefsRoundTripAndListing(t *testing.T) {
	ctx := context.Background()
	repo := NewBriefs(NewMemory())

	b := &campaign.Brief{CampaignID: "c1", Products: []campaign.Product{{ID: "a", ImagePath: campaign.Placeholder}}}
	require.NoError(t, repo.PutBrief(ctx, b))
	meta := campaign.NewMetadata("c1", time.Now())
	require.NoError(t, repo.PutMetadata(ctx, &meta))
	require.NoError(t, repo.Blobs().Put(ctx, LogsPrefix("c2")+"orphan.json", []byte("{}")))

	got, err := repo.GetBrief(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, campaign.Placeholder, got.Products[0].ImagePath)

	gotMeta, err := repo.GetMetadata(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, campaign.StatusPending, gotMeta.Status)

	ids, err := repo.ListCampaigns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	_, err = repo.GetBrief(ctx, "c2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.DeleteCampaign(ctx, "c1"))
	_, err = repo.GetMetadata(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}
