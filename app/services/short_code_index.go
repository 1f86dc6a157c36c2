package services

import (
	"context"
	"sync"

	"github.com/amirphl/campaign-hub/repository"
	"github.com/bits-and-blooms/bloom/v3"
)

// ShortCodeIndex is a probabilistic set of issued short codes. A negative
// answer is definite, a positive one still has to be confirmed by the store.
type ShortCodeIndex interface {
	MightContain(code string) bool
	Add(code string)
}

// BloomShortCodeIndex is a ShortCodeIndex backed by a bloom filter
type BloomShortCodeIndex struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

func NewBloomShortCodeIndex(capacity uint, falsePositiveRate float64) *BloomShortCodeIndex {
	if capacity == 0 {
		capacity = 1_000_000
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.001
	}
	return &BloomShortCodeIndex{filter: bloom.NewWithEstimates(capacity, falsePositiveRate)}
}

func (i *BloomShortCodeIndex) MightContain(code string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.filter.TestString(code)
}

func (i *BloomShortCodeIndex) Add(code string) {
	i.mu.Lock()
	i.filter.AddString(code)
	i.mu.Unlock()
}

// Warm loads every stored code into the index, page by page
func (i *BloomShortCodeIndex) Warm(ctx context.Context, repo repository.ShortLinkRepository) (int, error) {
	var (
		after uint
		total int
	)
	for {
		codes, last, err := repo.ListCodes(ctx, after, 5000)
		if err != nil {
			return total, err
		}
		if len(codes) == 0 {
			return total, nil
		}
		i.mu.Lock()
		for _, c := range codes {
			i.filter.AddString(c)
		}
		i.mu.Unlock()
		total += len(codes)
		after = last
	}
}
