package persistence

import (
	"context"
	"time"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/patrickmn/go-cache"
)

const flowsKey = "flows:all"

// CachedFlows keeps recently read flows in memory. Writes go through to the wrapped
// repository and invalidate the cache.
type CachedFlows struct {
	FlowRepository

	cache *cache.Cache
}

// NewCachedFlows wraps repo with a cache whose entries expire after ttl.
func NewCachedFlows(repo FlowRepository, ttl time.Duration) *CachedFlows {
	return &CachedFlows{
		FlowRepository: repo,
		cache:          cache.New(ttl, 2*ttl),
	}
}

func (c *CachedFlows) Flows(ctx context.Context) ([]*models.Flow, error) {
	if cached, ok := c.cache.Get(flowsKey); ok {
		return cached.([]*models.Flow), nil
	}

	flows, err := c.FlowRepository.Flows(ctx)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(flowsKey, flows)

	return flows, nil
}

func (c *CachedFlows) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	if cached, ok := c.cache.Get(flowKey(id)); ok {
		return cached.(*models.Flow), nil
	}

	flow, err := c.FlowRepository.FlowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(flowKey(id), flow)

	return flow, nil
}

func (c *CachedFlows) SaveFlow(ctx context.Context, flow *models.Flow) error {
	if err := c.FlowRepository.SaveFlow(ctx, flow); err != nil {
		return err
	}

	c.invalidate(flow.ID)

	return nil
}

func (c *CachedFlows) DeleteFlow(ctx context.Context, id string) error {
	if err := c.FlowRepository.DeleteFlow(ctx, id); err != nil {
		return err
	}

	c.invalidate(id)

	return nil
}

func (c *CachedFlows) invalidate(id string) {
	c.cache.Delete(flowKey(id))
	c.cache.Delete(flowsKey)
}

func flowKey(id string) string {
	return "flow:" + id
}
