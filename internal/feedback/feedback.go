// Package feedback captures per-category star ratings and submits the
// aggregate to the backend.
package feedback

import (
	"context"
	"sync"

	"kontratago/internal/models"
)

// Submitter is the backend surface the collector needs.
type Submitter interface {
	SubmitFeedback(ctx context.Context, ratings models.Ratings) (float64, error)
	FetchMetrics(ctx context.Context) (*models.Metrics, error)
}

// Collector holds one rating per fixed category, each clamped to
// [0,5] with 0 meaning unrated.
type Collector struct {
	mu      sync.Mutex
	ratings models.Ratings
	client  Submitter
}

func NewCollector(client Submitter) *Collector {
	ratings := make(models.Ratings, len(models.RatingCategories))
	for _, cat := range models.RatingCategories {
		ratings[cat] = 0
	}
	return &Collector{ratings: ratings, client: client}
}

// Set records a rating. Values clamp into [0,5]; unknown categories
// are ignored. Setting the same value twice is a no-op.
func (c *Collector) Set(category models.RatingCategory, value int) {
	if value < 0 {
		value = 0
	}
	if value > 5 {
		value = 5
	}
	c.mu.Lock()
	if _, ok := c.ratings[category]; ok {
		c.ratings[category] = value
	}
	c.mu.Unlock()
}

// Ratings returns a copy of the current rating set.
func (c *Collector) Ratings() models.Ratings {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(models.Ratings, len(c.ratings))
	for k, v := range c.ratings {
		out[k] = v
	}
	return out
}

// Submit sends the full rating set and returns the backend-computed
// average. A failure leaves the local ratings untouched.
func (c *Collector) Submit(ctx context.Context) (float64, error) {
	return c.client.SubmitFeedback(ctx, c.Ratings())
}

// Metrics fetches the evaluation snapshot for the overlay.
func (c *Collector) Metrics(ctx context.Context) (*models.Metrics, error) {
	return c.client.FetchMetrics(ctx)
}
