package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventETA(t *testing.T) {
	now := time.Date(2099, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := &Event{Start: now.Add(50*time.Hour + 30*time.Minute)}

	days, hours, minutes, ok := ev.ETA(now)
	require.True(t, ok)
	assert.Equal(t, 2, days)
	assert.Equal(t, 50, hours)
	assert.Equal(t, 50*60+30, minutes)
}

func TestEventETAAfterStart(t *testing.T) {
	now := time.Date(2099, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := &Event{Start: now.Add(-time.Hour)}

	_, _, _, ok := ev.ETA(now)
	assert.False(t, ok)
}

func TestSnapshotNext(t *testing.T) {
	now := time.Date(2099, 3, 5, 12, 0, 0, 0, time.UTC)
	snap := &Snapshot{Events: []Event{
		{UID: "past", End: now.Add(-time.Hour)},
		{UID: "current", Start: now.Add(-24 * time.Hour), End: now.Add(24 * time.Hour)},
		{UID: "future", Start: now.Add(48 * time.Hour), End: now.Add(96 * time.Hour)},
	}}

	next := snap.Next(now)
	require.NotNil(t, next)
	assert.Equal(t, "current", next.UID)

	var empty *Snapshot
	assert.Nil(t, empty.Next(now))
}
