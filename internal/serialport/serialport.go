// Package serialport owns the physical serial device and turns its byte
// stream into delimited frames. A fast read loop appends incoming bytes to a
// single growable buffer; an independent drain loop slices complete frames
// off that buffer on its own cadence, so decoding never stalls the reads.
package serialport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPollInterval  = 100 * time.Microsecond
	defaultDrainInterval = 10 * time.Millisecond
	defaultMaxBuffer     = 1000
	frameChanDepth       = 64
)

// Options configures the serial device and the two loop cadences.
type Options struct {
	// Device parameters, passed through to the serial library.
	Port              string
	BaudRate          uint
	DataBits          uint
	StopBits          uint
	Parity            string // "none", "odd" or "even"
	RTSCTSFlowControl bool
	// InterCharacterTimeoutMs bounds each Read so the loop never blocks
	// indefinitely; with MinimumReadSize 0 a Read returns whatever is
	// available within the window.
	InterCharacterTimeoutMs uint
	MinimumReadSize         uint

	// Loop tuning. Zero values select the defaults.
	PollInterval  time.Duration // read cadence, default 100µs
	DrainInterval time.Duration // frame extraction cadence, default 10ms
	MaxBuffer     int           // force-flush ceiling in bytes, default 1000
}

// Frame is one delimited unit of raw bytes plus its arrival timestamp in
// unix seconds. Frames are handed to the decoder and never retained.
type Frame struct {
	Bytes     []byte
	Timestamp float64
}

// Channel reads a serial port into frames. It is the sole owner of the port
// handle and of the accumulation buffer.
type Channel struct {
	port      io.ReadCloser
	opts      Options
	stopOnEOF bool

	mu  sync.Mutex
	buf []byte

	frames    chan Frame
	eof       atomic.Bool
	readErrs  atomic.Uint64
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func parityMode(s string) (serial.ParityMode, error) {
	switch s {
	case "", "none":
		return serial.PARITY_NONE, nil
	case "odd":
		return serial.PARITY_ODD, nil
	case "even":
		return serial.PARITY_EVEN, nil
	}
	return serial.PARITY_NONE, fmt.Errorf("unknown parity %q", s)
}

func (o *Options) fillDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.DrainInterval <= 0 {
		o.DrainInterval = defaultDrainInterval
	}
	if o.MaxBuffer <= 0 {
		o.MaxBuffer = defaultMaxBuffer
	}
}

// Open opens the serial device described by opts. Open failures (missing
// device, permissions) are fatal to the channel and surfaced to the caller;
// they are never retried internally.
func Open(opts Options) (*Channel, error) {
	opts.fillDefaults()

	parity, err := parityMode(opts.Parity)
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(serial.OpenOptions{
		PortName:              opts.Port,
		BaudRate:              opts.BaudRate,
		DataBits:              opts.DataBits,
		StopBits:              opts.StopBits,
		ParityMode:            parity,
		RTSCTSFlowControl:     opts.RTSCTSFlowControl,
		InterCharacterTimeout: opts.InterCharacterTimeoutMs,
		MinimumReadSize:       opts.MinimumReadSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", opts.Port, err)
	}
	log.Infof("serial port opened on %s at %d baud", opts.Port, opts.BaudRate)

	return &Channel{port: port, opts: opts, frames: make(chan Frame, frameChanDepth)}, nil
}

// NewFromReader builds a channel fed from an arbitrary reader instead of a
// real device. EOF ends the stream, flushing any trailing partial frame.
// Used by tests and by replay tooling.
func NewFromReader(r io.Reader, opts Options) *Channel {
	opts.fillDefaults()
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	return &Channel{
		port:      rc,
		opts:      opts,
		stopOnEOF: true,
		frames:    make(chan Frame, frameChanDepth),
	}
}

// Start launches the read and drain loops. Frames() yields results until the
// context is cancelled, Close is called, or (for reader-backed channels) the
// source is exhausted.
func (c *Channel) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(2)
	go c.readLoop(ctx)
	go c.drainLoop(ctx)
}

// Frames returns the channel of extracted frames. It is closed when the
// drain loop exits.
func (c *Channel) Frames() <-chan Frame {
	return c.frames
}

// ReadErrors returns the count of transient read errors seen so far.
func (c *Channel) ReadErrors() uint64 {
	return c.readErrs.Load()
}

// Close stops both loops, closes the port and discards any buffered bytes.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		// Closing the port unblocks a read in flight so the loops can
		// observe the cancelled context.
		c.closeErr = c.port.Close()
		c.wg.Wait()
		c.mu.Lock()
		c.buf = nil
		c.mu.Unlock()
	})
	return c.closeErr
}

// readLoop polls the port on a short cadence and appends whatever arrives to
// the buffer. It is the only writer to c.buf.
func (c *Channel) readLoop(ctx context.Context) {
	defer c.wg.Done()

	chunk := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := c.port.Read(chunk)
		if n > 0 {
			c.mu.Lock()
			c.buf = append(c.buf, chunk[:n]...)
			c.mu.Unlock()
		}
		if err != nil {
			if c.stopOnEOF && err == io.EOF {
				c.eof.Store(true)
				return
			}
			// Transient read hiccup: count it and retry next cycle.
			c.readErrs.Add(1)
			log.Debugf("serial read error (will retry): %v", err)
		}

		time.Sleep(c.opts.PollInterval)
	}
}

// drainLoop extracts frames from the buffer on its own cadence, holding the
// lock only for the slice-and-truncate step.
func (c *Channel) drainLoop(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.frames)

	ticker := time.NewTicker(c.opts.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.emit(ctx, c.extract(false)) {
				return
			}
			if c.eof.Load() {
				// Source exhausted: flush whatever is left and finish.
				c.emit(ctx, c.extract(true))
				return
			}
		}
	}
}

// extract slices one frame off the buffer: everything up to and including
// the last delimiter, or the whole buffer when it exceeds the ceiling (or
// when final is set). Returns nil when nothing is ready.
func (c *Channel) extract(final bool) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.buf) == 0 {
		return nil
	}

	idx := bytes.LastIndexByte(c.buf, '\n')
	if j := bytes.LastIndexByte(c.buf, '\r'); j > idx {
		idx = j
	}

	var out []byte
	switch {
	case idx >= 0:
		out = append(out, c.buf[:idx+1]...)
		c.buf = append(c.buf[:0], c.buf[idx+1:]...)
	case final || len(c.buf) > c.opts.MaxBuffer:
		// No delimiter in sight: force-flush to bound memory on
		// delimiter-free (binary or malformed) streams.
		out = append(out, c.buf...)
		c.buf = c.buf[:0]
	}
	return out
}

func (c *Channel) emit(ctx context.Context, frame []byte) bool {
	if len(frame) == 0 {
		return true
	}
	select {
	case c.frames <- Frame{Bytes: frame, Timestamp: now()}:
		return true
	case <-ctx.Done():
		return false
	}
}

func now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
