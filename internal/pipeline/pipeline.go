// Package pipeline composes the ingest channel, decoder, filter and rate
// synchronizer into the full processing path: raw frames in, filtered
// orientation samples out.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/decode"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/filter"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/quat"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/rate"
	"github.com/yuk1kaza/quaternion-3Dvisualizer/internal/serialport"
)

const (
	sampleChanDepth = 64

	// dt for the very first sample and for frames whose timestamps do not
	// advance. 20 ms matches a 50 Hz stream.
	defaultDt = 0.02
)

// FrameSource is the ingest side of the pipeline. *serialport.Channel
// satisfies it; tests substitute reader-backed channels.
type FrameSource interface {
	Frames() <-chan serialport.Frame
}

// Stats aggregates the counters of every stage plus the pipeline's own
// dropped-sample count.
type Stats struct {
	Decoder decode.Stats `json:"decoder"`
	Filter  filter.Stats `json:"filter"`
	Dropped uint64       `json:"dropped"`
}

// Pipeline runs the decode/filter path over one frame source. The decoder
// and filter are single-threaded state machines, so Run consumes frames in
// exactly one goroutine; accessors return snapshots safe to call from
// elsewhere.
type Pipeline struct {
	source FrameSource
	sync   *rate.Synchronizer

	// mu guards the decoder, the filter and lastTimestamp, so Stats can
	// snapshot their counters while Run is live.
	mu      sync.Mutex
	decoder *decode.Decoder
	filter  *filter.Filter

	samples chan quat.Sample
	dropped atomic.Uint64

	lastTimestamp float64
}

// New wires a pipeline over the given source and stages. A nil policy gets
// the fixed default weights.
func New(source FrameSource, format decode.Format, policy filter.WeightPolicy) *Pipeline {
	return &Pipeline{
		source:  source,
		decoder: decode.New(format),
		filter:  filter.New(policy),
		sync:    rate.New(),
		samples: make(chan quat.Sample, sampleChanDepth),
	}
}

// Samples returns the output channel. It is closed when Run returns.
func (p *Pipeline) Samples() <-chan quat.Sample {
	return p.samples
}

// RateEstimate returns the current rate recommendation.
func (p *Pipeline) RateEstimate(now float64) rate.Estimate {
	return p.sync.Estimate(now)
}

// Stats returns a snapshot of all stage counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Decoder: p.decoder.Stats(),
		Filter:  p.filter.Stats(),
		Dropped: p.dropped.Load(),
	}
}

// Run consumes frames until the source closes or the context is cancelled.
// It is the sole goroutine touching the decoder and filter.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.samples)

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-p.source.Frames():
			if !ok {
				log.Info("pipeline: frame source closed")
				return
			}
			p.process(frame)
		}
	}
}

func (p *Pipeline) process(frame serialport.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range p.decoder.Decode(frame.Bytes) {
		p.sync.RecordArrival(frame.Timestamp)

		dt := defaultDt
		if p.lastTimestamp > 0 && frame.Timestamp > p.lastTimestamp {
			dt = frame.Timestamp - p.lastTimestamp
		}
		p.lastTimestamp = frame.Timestamp

		filtered := p.filter.UpdateQuat(raw, dt)
		p.emit(quat.NewSample(filtered, raw, frame.Timestamp))
	}
}

// emit is a non-blocking send: a stalled consumer loses the oldest samples,
// never the freshest, and never stalls the decode path.
func (p *Pipeline) emit(s quat.Sample) {
	for {
		select {
		case p.samples <- s:
			return
		default:
		}
		select {
		case <-p.samples:
			p.dropped.Add(1)
			log.Debugf("pipeline: dropped stale sample (total %d)", p.dropped.Load())
		default:
		}
	}
}
