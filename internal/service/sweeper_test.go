package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionSweeper_Sweep(t *testing.T) {
	repo := new(MockSessionRepository)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := NewSessionSweeper(repo, 30*time.Minute, 90*24*time.Hour, time.Minute)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	repo.On("MarkIdle", ctx, now.Add(-30*time.Minute)).Return(int64(4), nil).Once()
	repo.On("Archive", ctx, now.Add(-90*24*time.Hour)).Return(int64(1), nil).Once()

	idled, archived, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, idled)
	assert.EqualValues(t, 1, archived)

	repo.On("MarkIdle", ctx, now.Add(-30*time.Minute)).Return(int64(0), errors.New("db down")).Once()
	_, _, err = s.Sweep(ctx)
	require.Error(t, err)
	repo.AssertNumberOfCalls(t, "Archive", 1)
}

func TestSessionSweeper_Defaults(t *testing.T) {
	s := NewSessionSweeper(new(MockSessionRepository), 0, 0, 0)
	assert.Equal(t, 30*time.Minute, s.idleAfter)
	assert.Equal(t, 90*24*time.Hour, s.archiveAfter)
	assert.Equal(t, 5*time.Minute, s.interval)
}
