package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-governor/internal/domain"
)

func TestAgentRepo_FetchAgentsByIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	paused := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "name", "is_active", "paused_at", "consecutive_failures", "max_consecutive_failures", "health_status"}).
		AddRow("a1", "Writer", true, nil, 0, 3, "healthy").
		AddRow("a2", "Researcher", true, paused, 1, 3, "degraded")

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = ANY($1)")).
		WithArgs(pq.Array([]string{"a1", "a2", "a3"})).
		WillReturnRows(rows)

	agents, err := NewAgentRepo(db).FetchAgentsByIDs(context.Background(), []string{"a1", "a2", "a3"})
	require.NoError(t, err)
	require.Len(t, agents, 2)

	assert.True(t, agents["a1"].IsAvailable())
	assert.False(t, agents["a2"].IsAvailable())
	require.NotNil(t, agents["a2"].PausedAt)
	assert.Equal(t, domain.HealthDegraded, agents["a2"].HealthStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAgentRepo_FetchAgentsByIDs_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	agents, err := NewAgentRepo(db).FetchAgentsByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, agents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAgentRepo_PausedAgentIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM agents WHERE paused_at IS NOT NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1").AddRow("a7"))

	ids, err := NewAgentRepo(db).PausedAgentIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a7"}, ids)
}

func TestAgentRepo_SetPaused(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewAgentRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("SET paused_at = COALESCE(paused_at, NOW())")).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetPaused(context.Background(), "a1", true))

	mock.ExpectExec(regexp.QuoteMeta("SET paused_at = NULL")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.SetPaused(context.Background(), "ghost", false)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
