package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/decode"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/serialport"
)

type fakeSource struct {
	frames chan serialport.Frame
}

func (f *fakeSource) Frames() <-chan serialport.Frame {
	return f.frames
}

func TestEndToEndOverMockChannel(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "%.4f,%.4f,0,0\n", 1.0-float64(i)*0.001, float64(i)*0.001)
	}

	ch := serialport.NewFromReader(strings.NewReader(b.String()), serialport.Options{
		PollInterval:  time.Microsecond,
		DrainInterval: time.Millisecond,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ch.Start(ctx)
	defer ch.Close()

	p := New(ch, decode.ASCII, nil)
	go p.Run(ctx)

	var count int
	for s := range p.Samples() {
		count++
		assert.True(t, s.Quaternion.IsValid())
		assert.NotZero(t, s.Timestamp)
	}

	require.Equal(t, 30, count)
	stats := p.Stats()
	assert.Equal(t, uint64(30), stats.Decoder.Valid)
	assert.Zero(t, stats.Decoder.Invalid)
	assert.Zero(t, stats.Dropped)
	// First sample seeds the filter; the rest are processed.
	assert.Equal(t, uint64(29), stats.Filter.Samples)
}

func TestRateRecommendationFromFrameTimestamps(t *testing.T) {
	src := &fakeSource{frames: make(chan serialport.Frame, 64)}

	base := 1000.0
	last := base
	for i := 0; i < 50; i++ {
		last = base + float64(i)*0.010
		src.frames <- serialport.Frame{
			Bytes:     []byte("1,0,0,0\n"),
			Timestamp: last,
		}
	}
	close(src.frames)

	p := New(src, decode.ASCII, nil)
	p.Run(context.Background())

	est := p.RateEstimate(last + 2.1)
	assert.InDelta(t, 100.0, est.DetectedRateHz, 1.0)
	assert.Equal(t, 0.12, est.InterpolationFactor)
}

func TestMalformedFramesNeverStallPipeline(t *testing.T) {
	src := &fakeSource{frames: make(chan serialport.Frame, 8)}
	src.frames <- serialport.Frame{Bytes: []byte("garbage,line\n"), Timestamp: 1}
	src.frames <- serialport.Frame{Bytes: []byte("1,0,0,0\n"), Timestamp: 2}
	close(src.frames)

	p := New(src, decode.ASCII, nil)
	p.Run(context.Background())

	var count int
	for range p.Samples() {
		count++
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, uint64(1), p.Stats().Decoder.Invalid)
}

func TestStatsSnapshotDuringRun(t *testing.T) {
	const total = 200
	src := &fakeSource{frames: make(chan serialport.Frame, total)}
	for i := 0; i < total; i++ {
		src.frames <- serialport.Frame{
			Bytes:     []byte("1,0,0,0\n"),
			Timestamp: 1000 + float64(i)*0.010,
		}
	}
	close(src.frames)

	p := New(src, decode.ASCII, nil)

	// Poll stats from a second goroutine the whole time Run is consuming,
	// the way the producer's shutdown path does.
	stop := make(chan struct{})
	polled := make(chan struct{})
	go func() {
		defer close(polled)
		for {
			select {
			case <-stop:
				return
			default:
				s := p.Stats()
				assert.LessOrEqual(t, s.Filter.Samples, s.Decoder.Valid)
			}
		}
	}()

	go p.Run(context.Background())
	for range p.Samples() {
	}
	close(stop)
	<-polled

	stats := p.Stats()
	assert.Equal(t, uint64(total), stats.Decoder.Valid)
	assert.Equal(t, uint64(total-1), stats.Filter.Samples)
}

func TestContextCancelStopsRun(t *testing.T) {
	src := &fakeSource{frames: make(chan serialport.Frame)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	p := New(src, decode.ASCII, nil)
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}
