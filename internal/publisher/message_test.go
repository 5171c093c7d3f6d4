package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_fetcher/internal/domain"
)

func TestNewReviewMessage_JSONShape(t *testing.T) {
	createdAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	review := &domain.Review{
		ID:        5,
		AppID:     1,
		Platform:  domain.PlatformAndroid,
		Rating:    4,
		Content:   "nice",
		Author:    "alice",
		CreatedAt: createdAt,
	}
	local := time.Date(2024, 1, 2, 8, 0, 0, 0, time.FixedZone("CST", 8*3600))

	body, err := json.Marshal(NewReviewMessage(review, local))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Equal(t, "review.created", raw["action"])
	assert.Equal(t, "2024-01-02T00:00:00Z", raw["timestamp"])

	inner, ok := raw["review"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "android", inner["platform"])
	assert.Equal(t, "alice", inner["author"])
	assert.Equal(t, "2024-01-01T10:00:00Z", inner["created_at"])
	assert.EqualValues(t, 4, inner["rating"])
}
