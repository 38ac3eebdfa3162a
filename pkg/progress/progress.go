// Package progress reports long-running work on a terminal. Non-terminal
// writers get plain one-line messages.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v2"
)

var frames = [...]string{"-", "\\", "|", "/"}

const spinInterval = 100 * time.Millisecond

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Spinner shows that a single blocking call is running and times it. On a
// terminal the message is animated with the elapsed time; other writers get
// the message once.
type Spinner struct {
	w       io.Writer
	msg     string
	started time.Time
	stop    chan struct{}
	stopped sync.WaitGroup
}

// StartSpinner prints msg and starts timing. Call Stop when the call returns.
func StartSpinner(w io.Writer, msg string) *Spinner {
	s := &Spinner{w: w, msg: msg, started: time.Now()}
	if !IsTerminal(w) {
		fmt.Fprintln(w, msg)
		return s
	}
	s.stop = make(chan struct{})
	s.stopped.Add(1)
	go s.spin()
	return s
}

func (s *Spinner) spin() {
	defer s.stopped.Done()
	ticker := time.NewTicker(spinInterval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		fmt.Fprintf(s.w, "\r%s %s %s", frames[i%len(frames)], s.msg, Elapsed(time.Since(s.started)))
		select {
		case <-s.stop:
			fmt.Fprint(s.w, "\r\033[K")
			return
		case <-ticker.C:
		}
	}
}

// Stop clears the animation and returns the time since StartSpinner.
// Calling Stop again only reports the time.
func (s *Spinner) Stop() time.Duration {
	if s.stop != nil {
		close(s.stop)
		s.stopped.Wait()
		s.stop = nil
	}
	return time.Since(s.started)
}

// Elapsed formats d to a tenth of a second, e.g. "1.2s".
func Elapsed(d time.Duration) string {
	return d.Round(spinInterval).String()
}

// Bar counts completed items of a batch job. On a TTY it renders a progress
// bar; otherwise it prints a single summary line on Finish.
type Bar struct {
	w     io.Writer
	desc  string
	total int
	n     int
	bar   *progressbar.ProgressBar
}

// NewBar creates a bar for total items.
func NewBar(w io.Writer, total int, desc string) *Bar {
	b := &Bar{w: w, desc: desc, total: total}
	if IsTerminal(w) && total > 0 {
		b.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(desc),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	return b
}

// Add records n more completed items.
func (b *Bar) Add(n int) {
	b.n += n
	if b.bar != nil {
		b.bar.Add(n)
	}
}

// Count returns the number of completed items.
func (b *Bar) Count() int {
	return b.n
}

// Finish completes the bar.
func (b *Bar) Finish() {
	if b.bar != nil {
		b.bar.Finish()
		fmt.Fprintln(b.w)
		return
	}
	fmt.Fprintf(b.w, "%s: %d/%d\n", b.desc, b.n, b.total)
}
