package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSegmentsValid(t *testing.T) {
	data := []byte(`[
		{"id":"s1","text":"hello","startTime":0,"endTime":2,"isComplete":true,
		 "words":[{"word":"hello","startTime":0,"endTime":2,"confidence":0.98}]},
		{"id":"s2","text":"world","startTime":2,"endTime":4,"isComplete":true,"words":[]}
	]`)

	segments, err := ParseSegments(data)
	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, "s1", segments[0].ID)
	assert.Equal(t, "hello", segments[0].Text)
	assert.Equal(t, 0.0, segments[0].StartTime)
	assert.Equal(t, 2.0, segments[0].EndTime)
	assert.True(t, segments[0].IsComplete)
	require.Len(t, segments[0].Words, 1)
	assert.Equal(t, 0.98, segments[0].Words[0].Confidence)
}

func TestParseSegmentsInvalidJSON(t *testing.T) {
	_, err := ParseSegments([]byte(`{"not":"an array"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid caption JSON")
}

func TestParseSegmentsRejectsNegativeWindow(t *testing.T) {
	data := []byte(`[{"id":"s1","text":"bad","startTime":5,"endTime":2,"words":[]}]`)

	_, err := ParseSegments(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startTime")
}

func TestParseSegmentsRejectsNegativeWordWindow(t *testing.T) {
	data := []byte(`[{"id":"s1","text":"ok","startTime":0,"endTime":2,
		"words":[{"word":"ok","startTime":1.5,"endTime":0.5}]}]`)

	_, err := ParseSegments(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word")
}

func TestParseSegmentsEmptyArray(t *testing.T) {
	segments, err := ParseSegments([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestParseSegmentsZeroDurationAllowed(t *testing.T) {
	data := []byte(`[{"id":"s1","text":"blip","startTime":1,"endTime":1,"words":[]}]`)

	segments, err := ParseSegments(data)
	require.NoError(t, err)
	require.Len(t, segments, 1)
}

func TestWatermarkSpecEmpty(t *testing.T) {
	assert.True(t, WatermarkSpec{}.Empty())
	assert.False(t, WatermarkSpec{Text: "anon"}.Empty())
	assert.False(t, WatermarkSpec{ImagePath: "logo.png"}.Empty())
}
