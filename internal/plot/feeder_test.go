package plot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeederPushWritesOneJSONLinePerFrame(t *testing.T) {
	var buf bytes.Buffer
	f := NewFeeder(&buf, 100)

	require.NoError(t, f.Push([][]float64{{1, 2, 3}, {4, 5, 6}}))
	require.NoError(t, f.Push([][]float64{{7}, {8}}))

	scanner := bufio.NewScanner(&buf)

	var frames [][][]float64
	for scanner.Scan() {
		var frame [][]float64
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &frame))
		frames = append(frames, frame)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, frames, 2)
	require.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, frames[0])
	require.Equal(t, [][]float64{{7}, {8}}, frames[1])
}

func TestFeederFramesHaveNoEmbeddedNewlines(t *testing.T) {
	var buf bytes.Buffer
	f := NewFeeder(&buf, 100)

	require.NoError(t, f.Push([][]float64{{1.5, -2.25}}))

	out := buf.String()
	require.True(t, strings.HasSuffix(out, "\n"))
	require.Equal(t, 1, strings.Count(out, "\n"))
}

func TestFeederWindowSamples(t *testing.T) {
	require.Equal(t, 6000, NewFeeder(&bytes.Buffer{}, 100).WindowSamples())
	require.Equal(t, 60000, NewFeeder(&bytes.Buffer{}, 1000).WindowSamples())
}

func TestFeederStopWithoutChild(t *testing.T) {
	f := NewFeeder(&bytes.Buffer{}, 100)
	require.NoError(t, f.Stop())
}
