// Package progress renders a single transfer progress bar and owns the
// interactive Ctrl-C handling around it: an interrupt pauses rendering
// and asks whether to stop the upload instead of killing the process
// outright.
package progress

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
)

// Bar is a byte-count progress bar for one file transfer. The bar is
// created lazily on the first positive total, so callers can construct
// it before the transfer size is known.
//
// While a Bar is active it owns SIGINT: the first interrupt pauses the
// bar and prompts for confirmation. Answering yes either runs the stop
// callback or exits the process; answering no resumes the transfer.
type Bar struct {
	mu          sync.Mutex
	bar         *progressbar.ProgressBar
	description string
	total       int64
	current     int64

	out io.Writer
	in  io.Reader

	// onStop, when set, is called on a confirmed interrupt. Returning
	// true requests a cooperative stop (observed via StopRequested);
	// false falls through to process exit.
	onStop func() bool

	stopRequested atomic.Bool
	prompting     atomic.Bool

	signals chan os.Signal
	done    chan struct{}
	once    sync.Once
}

// Option configures a Bar.
type Option func(*Bar)

// WithWriter redirects bar output; used by tests.
func WithWriter(w io.Writer) Option {
	return func(b *Bar) { b.out = w }
}

// WithReader redirects prompt input; used by tests.
func WithReader(r io.Reader) Option {
	return func(b *Bar) { b.in = r }
}

// WithStopFunc installs the cooperative stop callback.
func WithStopFunc(fn func() bool) Option {
	return func(b *Bar) { b.onStop = fn }
}

// NewBar returns a bar with the given description and installs the
// interrupt handler. Call Done when the transfer finishes.
func NewBar(description string, opts ...Option) *Bar {
	b := &Bar{
		description: description,
		out:         os.Stderr,
		in:          os.Stdin,
		signals:     make(chan os.Signal, 1),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	signal.Notify(b.signals, os.Interrupt)
	go b.handleInterrupts()
	return b
}

func (b *Bar) newBar(total int64) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(b.description),
		progressbar.OptionSetWriter(b.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(b.out, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// SetTotal sets the expected byte count. The bar appears on the first
// positive total; later calls resize it.
func (b *Bar) SetTotal(total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if total <= 0 {
		return
	}
	b.total = total
	if b.bar == nil {
		b.bar = b.newBar(total)
		return
	}
	b.bar.ChangeMax64(total)
}

// SetProgress moves the bar to current. Values below the high-water
// mark are ignored so out-of-order progress reports never move the bar
// backwards.
func (b *Bar) SetProgress(current int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar == nil || current <= b.current {
		return
	}
	b.current = current
	_ = b.bar.Set64(current)
}

// IncrementProgress advances the bar by delta bytes.
func (b *Bar) IncrementProgress(delta int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar == nil || delta <= 0 {
		return
	}
	b.current += delta
	_ = b.bar.Add64(delta)
}

// SetDescription relabels the bar.
func (b *Bar) SetDescription(description string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.description = description
	if b.bar != nil {
		b.bar.Describe(description)
	}
}

// StopRequested reports whether a confirmed interrupt asked for a
// cooperative stop.
func (b *Bar) StopRequested() bool {
	return b.stopRequested.Load()
}

// Done finishes the bar and releases the interrupt handler.
func (b *Bar) Done() {
	b.once.Do(func() {
		signal.Stop(b.signals)
		close(b.done)
	})
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}

func (b *Bar) handleInterrupts() {
	for {
		select {
		case <-b.done:
			return
		case <-b.signals:
			if b.prompting.Load() {
				fmt.Fprint(b.out, "\nStill waiting for an answer. Stop the upload? [y/n]: ")
				continue
			}
			b.confirmStop()
		}
	}
}

// confirmStop pauses the bar, asks whether to stop, and acts on the
// answer. Runs on the signal goroutine; the prompt blocks until the
// operator answers.
func (b *Bar) confirmStop() {
	b.prompting.Store(true)
	defer b.prompting.Store(false)

	b.mu.Lock()
	if b.bar != nil {
		_ = b.bar.Clear()
	}
	b.mu.Unlock()

	fmt.Fprint(b.out, "\nStop the upload? [y/n]: ")
	answer, err := bufio.NewReader(b.in).ReadString('\n')
	if err != nil {
		// Input is gone; treat as a stop.
		b.exitOrStop()
		return
	}

	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
		b.exitOrStop()
		return
	}

	fmt.Fprintln(b.out, "Resuming.")
	b.mu.Lock()
	if b.bar != nil {
		_ = b.bar.RenderBlank()
	}
	b.mu.Unlock()
}

func (b *Bar) exitOrStop() {
	if b.onStop != nil && b.onStop() {
		b.stopRequested.Store(true)
		return
	}
	fmt.Fprintln(b.out, "Upload stopped.")
	os.Exit(1)
}

// Reader wraps an io.Reader and advances the bar as bytes are read.
type Reader struct {
	reader io.Reader
	bar    *Bar
}

// NewReader returns a progress-reporting reader over r.
func NewReader(r io.Reader, bar *Bar) *Reader {
	return &Reader{reader: r, bar: bar}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.bar.IncrementProgress(int64(n))
	}
	return n, err
}
