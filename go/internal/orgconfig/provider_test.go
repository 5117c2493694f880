package orgconfig

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/db"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuerier struct {
	rows  map[uuid.UUID]db.OrgSendConfig
	err   error
	calls int
}

func (f *fakeQuerier) GetOrgSendConfig(_ context.Context, orgID uuid.UUID) (db.OrgSendConfig, error) {
	f.calls++
	if f.err != nil {
		return db.OrgSendConfig{}, f.err
	}
	row, ok := f.rows[orgID]
	if !ok {
		return db.OrgSendConfig{}, sql.ErrNoRows
	}
	return row, nil
}

func TestChainPrefersOrgSpecific(t *testing.T) {
	orgID := uuid.New()
	q := &fakeQuerier{rows: map[uuid.UUID]db.OrgSendConfig{
		orgID: {OrgID: orgID, DailyLimit: 500, FromName: "Org"},
	}}
	chain := NewChain(NewRepository(q), NewStatic(models.SendConfig{DailyLimit: 100, FromName: "Default"}))

	cfg, err := chain.Resolve(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.DailyLimit)
	assert.Equal(t, "Org", cfg.FromName)
}

func TestChainFallsBackToDefault(t *testing.T) {
	orgID := uuid.New()
	chain := NewChain(NewRepository(&fakeQuerier{}), NewStatic(models.SendConfig{DailyLimit: 100}))

	cfg, err := chain.Resolve(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.DailyLimit)
	assert.Equal(t, orgID, cfg.OrgID)
}

func TestChainWithoutDefaultReportsNoConfig(t *testing.T) {
	chain := NewChain(NewRepository(&fakeQuerier{}), nil)

	_, err := chain.Resolve(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNoConfig)
}

func TestChainStopsOnStoreError(t *testing.T) {
	chain := NewChain(NewRepository(&fakeQuerier{err: errors.New("timeout")}), NewStatic(models.SendConfig{DailyLimit: 1}))

	_, err := chain.Resolve(context.Background(), uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoConfig)
}

func TestTickCacheResolvesOncePerOrg(t *testing.T) {
	known, unknown := uuid.New(), uuid.New()
	q := &fakeQuerier{rows: map[uuid.UUID]db.OrgSendConfig{known: {OrgID: known, DailyLimit: 10}}}
	cache := NewTickCache(NewRepository(q))

	for i := 0; i < 3; i++ {
		_, err := cache.Resolve(context.Background(), known)
		require.NoError(t, err)
		_, err = cache.Resolve(context.Background(), unknown)
		assert.ErrorIs(t, err, ErrNoConfig)
	}
	assert.Equal(t, 2, q.calls)
}
