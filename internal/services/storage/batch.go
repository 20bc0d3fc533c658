package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const mirrorWorkers = 5

// MirrorFiles uploads several results concurrently. URLs line up with
// paths; failed uploads leave an empty URL and are reported together.
func (s *StorageService) MirrorFiles(ctx context.Context, paths []string) ([]string, error) {
	return mirrorAll(ctx, paths, s.MirrorFile)
}

func mirrorAll(ctx context.Context, paths []string, mirror func(context.Context, string) (string, error)) ([]string, error) {
	urls := make([]string, len(paths))
	if len(paths) == 0 {
		return urls, nil
	}

	var (
		mu     sync.Mutex
		failed []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mirrorWorkers)
	for i, path := range paths {
		g.Go(func() error {
			url, err := mirror(gctx, path)
			if err != nil {
				mu.Lock()
				failed = append(failed, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
				return nil
			}
			urls[i] = url
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		return urls, fmt.Errorf("failed to upload %d files: %s",
			len(failed), strings.Join(failed, "; "))
	}
	return urls, nil
}
