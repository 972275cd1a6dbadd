package serialport

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{
		PollInterval:  100 * time.Microsecond,
		DrainInterval: time.Millisecond,
		MaxBuffer:     1000,
	}
}

func collectFrames(t *testing.T, c *Channel) []Frame {
	t.Helper()

	var frames []Frame
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-c.Frames():
			if !ok {
				return frames
			}
			frames = append(frames, f)
		case <-timeout:
			t.Fatal("timed out waiting for frames")
		}
	}
}

func TestDrainSlicesAtLastDelimiter(t *testing.T) {
	c := NewFromReader(strings.NewReader("1,0,0,0\n0,1,"), testOptions())
	c.Start(context.Background())

	frames := collectFrames(t, c)
	require.NoError(t, c.Close())

	// All bytes must come through, and the first complete frame must end at
	// the delimiter with the partial tail flushed separately at EOF.
	var all bytes.Buffer
	for _, f := range frames {
		all.Write(f.Bytes)
	}
	assert.Equal(t, "1,0,0,0\n0,1,", all.String())
	require.NotEmpty(t, frames)
	assert.Equal(t, byte('\n'), frames[0].Bytes[len(frames[0].Bytes)-1])
}

func TestDrainForceFlushWithoutDelimiter(t *testing.T) {
	payload := strings.Repeat("A", 1500)
	opts := testOptions()
	opts.MaxBuffer = 100

	c := NewFromReader(strings.NewReader(payload), opts)
	c.Start(context.Background())

	frames := collectFrames(t, c)
	require.NoError(t, c.Close())

	var all bytes.Buffer
	for _, f := range frames {
		all.Write(f.Bytes)
	}
	assert.Equal(t, payload, all.String())
}

func TestFramesCarryTimestamps(t *testing.T) {
	before := float64(time.Now().UnixNano()) / 1e9

	c := NewFromReader(strings.NewReader("1,0,0,0\n"), testOptions())
	c.Start(context.Background())
	frames := collectFrames(t, c)
	require.NoError(t, c.Close())

	after := float64(time.Now().UnixNano()) / 1e9
	require.Len(t, frames, 1)
	assert.GreaterOrEqual(t, frames[0].Timestamp, before)
	assert.LessOrEqual(t, frames[0].Timestamp, after)
}

func TestCloseDiscardsBufferedBytes(t *testing.T) {
	// A reader that never finishes keeps the partial line buffered; Close
	// must drop it rather than emit it.
	r, w := io.Pipe()
	defer w.Close()

	c := NewFromReader(r, testOptions())
	c.Start(context.Background())

	_, err := w.Write([]byte("0.5,0.5,"))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, c.Close())
	for range c.Frames() {
		t.Fatal("no frame expected for an undelimited partial line")
	}
}

func TestParityMode(t *testing.T) {
	for _, s := range []string{"", "none", "odd", "even"} {
		_, err := parityMode(s)
		assert.NoError(t, err, s)
	}
	_, err := parityMode("mark")
	assert.Error(t, err)
}
