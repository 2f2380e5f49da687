package contests

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contestcal/internal/model"
)

func TestDecodeContestsBareArray(t *testing.T) {
	got, err := DecodeContests([]byte(`[
	  {"externalId": "abc123", "platform": "AtCoder", "name": "ABC 390", "startTime": "2025-01-25T12:00:00Z",
	   "endTime": "2025-01-25T13:40:00Z", "durationMinutes": 100}
	]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "abc123", got[0].ID)
	assert.Equal(t, model.PlatformAtCoder, got[0].NormalizedPlatform)
	assert.Nil(t, got[0].LastSyncedAt)
}

func TestDecodeContestsIDPrecedence(t *testing.T) {
	got, err := DecodeContests([]byte(`[{"id": "a", "_id": "b", "externalId": "c",
	  "startTime": "2025-01-25T12:00:00Z", "endTime": "2025-01-25T13:00:00Z"}]`))
	require.NoError(t, err)
	assert.Equal(t, "a", got[0].ID)
}

func TestDecodeContestsSlugFallbackID(t *testing.T) {
	got, err := DecodeContests([]byte(`[{"platform": "cf", "name": "Educational Round #170 (Div. 2)",
	  "startTime": "2025-01-25T12:00:00Z", "endTime": "2025-01-25T14:00:00Z"}]`))
	require.NoError(t, err)
	assert.Equal(t, "codeforces-educational-round-170-div-2-20250125t1200", got[0].ID)
}

func TestDecodeContestsNonStringPlatform(t *testing.T) {
	got, err := DecodeContests([]byte(`[
	  {"id": "x", "platform": 7, "startTime": "2025-01-25T12:00:00Z", "endTime": "2025-01-25T14:00:00Z"},
	  {"id": "y", "platform": null, "startTime": "2025-01-25T12:00:00Z", "endTime": "2025-01-25T14:00:00Z"},
	  {"id": "z", "platform": {"name": "leetcode"}, "startTime": "2025-01-25T12:00:00Z", "endTime": "2025-01-25T14:00:00Z"},
	  {"id": "w", "startTime": "2025-01-25T12:00:00Z", "endTime": "2025-01-25T14:00:00Z"},
	  {"id": "v", "platform": "leetcode", "startTime": "2025-01-25T12:00:00Z", "endTime": "2025-01-25T14:00:00Z"}
	]`))
	require.NoError(t, err)
	require.Len(t, got, 5)
	for _, c := range got[:4] {
		assert.Equal(t, "", c.Platform, c.ID)
		assert.Equal(t, model.PlatformCodeforces, c.NormalizedPlatform, c.ID)
	}
	assert.Equal(t, "leetcode", got[4].Platform)
	assert.Equal(t, model.PlatformLeetCode, got[4].NormalizedPlatform)
}

func TestDecodeContestsEnvelopeWithoutData(t *testing.T) {
	got, err := DecodeContests([]byte(`{"success": true, "data": null}`))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeContestsFailures(t *testing.T) {
	for name, body := range map[string]string{
		"empty":        ``,
		"not json":     `<html>oops</html>`,
		"bad start":    `[{"id": "x", "startTime": "tomorrow", "endTime": "2025-01-25T14:00:00Z"}]`,
		"missing end":  `[{"id": "x", "startTime": "2025-01-25T12:00:00Z"}]`,
		"not an array": `{"success": true, "data": {"id": "x"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeContests([]byte(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUpstream))
		})
	}
}
