package workspaces

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input    string
		expected Strategy
		wantErr  bool
	}{
		{input: "symlink", expected: StrategySymlink},
		{input: "COPY", expected: StrategyCopy},
		{input: " none ", expected: StrategyNone},
		{input: "hardlink", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStrategy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestStrategyJSON(t *testing.T) {
	record := Record{SessionID: "s1", Strategy: StrategyCopy}

	data, err := json.Marshal(record)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"skillsStrategy":"copy"`)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, StrategyCopy, decoded.Strategy)

	_, err = json.Marshal(Record{Strategy: Strategy(42)})
	assert.Error(t, err)
}

func TestProfileFromMap(t *testing.T) {
	t.Run("empty map", func(t *testing.T) {
		p, err := ProfileFromMap(nil)
		require.NoError(t, err)
		assert.Equal(t, Profile{}, p)
		assert.Equal(t, "free", p.TierOrDefault())
	})

	t.Run("weakly typed flags", func(t *testing.T) {
		p, err := ProfileFromMap(map[string]any{
			"tier":               "premium",
			"custom_skills":      "true",
			"requires-isolation": true,
			"team":               "infra",
		})
		require.NoError(t, err)
		assert.Equal(t, "premium", p.Tier)
		assert.True(t, p.CustomSkills)
		assert.True(t, p.RequiresIsolation)
		assert.Equal(t, map[string]string{"team": "infra"}, p.Attributes)
	})

	t.Run("camel case keys", func(t *testing.T) {
		p, err := ProfileFromMap(map[string]any{"customSkills": false, "requiresIsolation": "1"})
		require.NoError(t, err)
		assert.False(t, p.CustomSkills)
		assert.True(t, p.RequiresIsolation)
		assert.Nil(t, p.Attributes)
	})

	t.Run("invalid flag", func(t *testing.T) {
		_, err := ProfileFromMap(map[string]any{"customSkills": "maybe"})
		assert.Error(t, err)
	})
}

func TestRecordClone(t *testing.T) {
	now := time.Now()
	original := Record{
		SessionID:  "s1",
		Profile:    Profile{Tier: "free", Attributes: map[string]string{"team": "a"}},
		CreatedAt:  now,
		LastUsedAt: now,
	}

	clone := original.Clone()
	clone.Profile.Attributes["team"] = "b"
	clone.LastUsedAt = now.Add(time.Hour)

	assert.Equal(t, "a", original.Profile.Attributes["team"])
	assert.Equal(t, now, original.LastUsedAt)
}
