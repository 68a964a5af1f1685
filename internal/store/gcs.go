package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/creatives-backend/internal/platform/gcp"
)

// GCS maps store paths onto object keys in one bucket. The leading slash is
// dropped because GCS object names are relative.
type GCS struct {
	bucket gcp.BucketService
}

func NewGCS(bucket gcp.BucketService) *GCS {
	return &GCS{bucket: bucket}
}

func toKey(path string) string { return strings.TrimPrefix(path, "/") }
func fromKey(key string) string { return "/" + strings.TrimPrefix(key, "/") }

func (g *GCS) Put(ctx context.Context, path string, data []byte) error {
	return g.bucket.UploadFile(ctx, toKey(path), data)
}

func (g *GCS) Get(ctx context.Context, path string) ([]byte, error) {
	b, err := g.bucket.DownloadFile(ctx, toKey(path))
	if err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	return b, nil
}

func (g *GCS) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := g.bucket.ListKeys(ctx, toKey(prefix))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fromKey(k))
	}
	sort.Strings(out)
	return out, nil
}

func (g *GCS) Delete(ctx context.Context, prefix string) error {
	return g.bucket.DeletePrefix(ctx, toKey(prefix))
}
