package speech

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ClipStore keeps the most recent clips in memory so a listener can fetch
// them by id. It is the Player for remote backends.
type ClipStore struct {
	cache *lru.Cache[string, *Clip]
}

func NewClipStore(size int) (*ClipStore, error) {
	cache, err := lru.New[string, *Clip](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create clip cache: %w", err)
	}
	return &ClipStore{cache: cache}, nil
}

func (s *ClipStore) Play(_ context.Context, clip *Clip) error {
	if clip == nil || clip.ID == "" {
		return errors.New("clip has no id")
	}
	s.cache.Add(clip.ID, clip)
	return nil
}

func (s *ClipStore) Get(id string) (*Clip, bool) {
	return s.cache.Get(id)
}

func (s *ClipStore) Len() int {
	return s.cache.Len()
}
