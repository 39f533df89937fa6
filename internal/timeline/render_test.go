package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sohbat-app/chat-service/internal/models"
)

func TestAnnotateDividerPlacement(t *testing.T) {
	now := time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)
	yesterday := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	today := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

	rendered := Annotate([]*models.Message{
		msg("m1", "alice", yesterday),
		msg("m2", "bob", today),
	}, now)

	require.Len(t, rendered, 2)
	assert.True(t, rendered[0].ShowDivider)
	assert.Equal(t, "Yesterday", rendered[0].DividerLabel)
	assert.True(t, rendered[1].ShowDivider)
	assert.Equal(t, "Today", rendered[1].DividerLabel)
}

func TestAnnotateDividerOnlyOnDateChange(t *testing.T) {
	now := time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)
	day := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

	rendered := Annotate([]*models.Message{
		msg("m1", "alice", day),
		msg("m2", "alice", day.Add(time.Minute)),
		msg("m3", "bob", day.Add(2*time.Minute)),
	}, now)

	require.Len(t, rendered, 3)
	assert.True(t, rendered[0].ShowDivider)
	assert.False(t, rendered[1].ShowDivider)
	assert.False(t, rendered[2].ShowDivider)
}

func TestAnnotateAuthorGrouping(t *testing.T) {
	now := time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)
	day := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	nextDay := time.Date(2025, 3, 12, 0, 5, 0, 0, time.UTC)

	rendered := Annotate([]*models.Message{
		msg("m1", "alice", day),
		msg("m2", "alice", day.Add(time.Minute)), // grouped with m1
		msg("m3", "bob", day.Add(2*time.Minute)), // author change
		msg("m4", "bob", nextDay),                // same author, new day
	}, now)

	require.Len(t, rendered, 4)
	assert.True(t, rendered[0].ShowHeader)
	assert.False(t, rendered[1].ShowHeader)
	assert.True(t, rendered[2].ShowHeader)
	assert.True(t, rendered[3].ShowHeader)
	assert.True(t, rendered[3].ShowDivider)
}

func TestAnnotateEmptyList(t *testing.T) {
	assert.Empty(t, Annotate(nil, time.Now()))
}

func TestDividerLabelOlderDate(t *testing.T) {
	now := time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)
	at := time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "2 January 2025", DividerLabel(at, now))
}
