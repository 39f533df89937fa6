package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKeyShape(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	key := buildKey("user-42", "photo.PNG", now)

	assert.True(t, strings.HasPrefix(key, "user-42/"), "key must be scoped to the uploader: %s", key)
	assert.True(t, strings.HasSuffix(key, ".png"), "extension must survive, lowercased: %s", key)
	assert.Contains(t, key, "1741597200000-", "key must embed the upload time: %s", key)
}

func TestBuildKeyNoExtension(t *testing.T) {
	key := buildKey("user-42", "README", time.Now())
	parts := strings.SplitN(key, "/", 2)
	require.Len(t, parts, 2)
	assert.NotContains(t, parts[1], ".")
}

func TestBuildKeyCollisionResistance(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		key := buildKey("user-42", "a.txt", now)
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}
