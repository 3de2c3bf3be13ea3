package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-governor/internal/domain"
)

type pausedList []string

func (p pausedList) PausedAgentIDs(context.Context) ([]string, error) { return p, nil }

type failingPaused struct{}

func (failingPaused) PausedAgentIDs(context.Context) ([]string, error) {
	return nil, errors.New("db down")
}

func TestKillSwitch_InitFromDatabase(t *testing.T) {
	m := NewKillSwitchManager(nil, pausedList{"a1", "a2"}, nil)
	m.MarkAsBlocked("stale")

	require.NoError(t, m.Init(context.Background()))
	assert.True(t, m.IsBlocked("a1"))
	assert.True(t, m.IsBlocked("a2"))
	assert.False(t, m.IsBlocked("stale"), "init replaces state, resumed agents must not stay blocked")
}

func TestKillSwitch_InitError(t *testing.T) {
	m := NewKillSwitchManager(nil, failingPaused{}, nil)
	assert.Error(t, m.Init(context.Background()))
}

func TestKillSwitch_PublishWithoutRedis(t *testing.T) {
	m := NewKillSwitchManager(nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, m.Publish(ctx, "a1", true))
	assert.True(t, m.IsBlocked("a1"))

	require.NoError(t, m.Publish(ctx, "a1", false))
	assert.False(t, m.IsBlocked("a1"))

	// без Redis слушатель сразу возвращается
	m.StartListener(ctx)
}

type countingTrustRepo struct {
	calls int
	cfg   domain.TrustConfig
}

func (c *countingTrustRepo) GetTrustConfig(_ context.Context, org string) (domain.TrustConfig, error) {
	c.calls++
	cfg := c.cfg
	cfg.OrganizationID = org
	return cfg, nil
}

func TestTrustCache_MemoizesAndInvalidates(t *testing.T) {
	repo := &countingTrustRepo{cfg: domain.DefaultTrustConfig("")}
	c := NewTrustCache(repo, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cfg, err := c.Get(ctx, "org-1")
		require.NoError(t, err)
		assert.Equal(t, "org-1", cfg.OrganizationID)
	}
	assert.Equal(t, 1, repo.calls)

	require.NoError(t, c.Publish(ctx, "org-1"))
	_, err := c.Get(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)

	_, _ = c.Get(ctx, "org-2")
	c.Reset()
	_, _ = c.Get(ctx, "org-2")
	assert.Equal(t, 4, repo.calls)
}

func TestTrustCache_WithoutRepository(t *testing.T) {
	c := NewTrustCache(nil, nil, nil)
	cfg, err := c.Get(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTrustConfig("org-1"), cfg)
}
