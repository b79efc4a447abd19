package suntimes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf(t *testing.T) {
	instant := time.Date(2024, 12, 31, 22, 0, 0, 0, time.UTC)

	assert.Equal(t, Date{2024, time.December, 31}, DateOf(instant, time.UTC))
	assert.Equal(t, Date{2025, time.January, 1}, DateOf(instant, time.FixedZone("UTC+3", 3*60*60)))
	assert.Equal(t, Date{2024, time.December, 31}, DateOf(instant, nil))
}

func TestDateText(t *testing.T) {
	d := Date{2024, time.March, 5}
	assert.Equal(t, "2024-03-05", d.String())

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-05"`, string(data))

	var back Date
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, d, back)

	assert.Error(t, json.Unmarshal([]byte(`"05/03/2024"`), &back))
	assert.True(t, Date{}.IsZero())
	assert.False(t, d.IsZero())
}
