package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// spinner animates a status line on w until Stop is called or ctx ends.
// The line is cleared when it stops.
type spinner struct {
	w io.Writer

	mu    sync.Mutex
	msg   string
	width int // widest line drawn, for clearing

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// startSpinner draws the formatted message on w and keeps animating it in
// the background.
func startSpinner(ctx context.Context, w io.Writer, format string, args ...any) *spinner {
	s := &spinner{
		w:    w,
		msg:  fmt.Sprintf(format, args...),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

func (s *spinner) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		s.draw(spinnerFrames[frame%len(spinnerFrames)])
		select {
		case <-ctx.Done():
			s.clear()
			return
		case <-s.stop:
			s.clear()
			return
		case <-ticker.C:
		}
	}
}

func (s *spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.msg))
	s.width = max(s.width, len([]rune(s.msg))+2)
}

func (s *spinner) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width > 0 {
		fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width))
	}
}

// Update changes the message from the next frame on.
func (s *spinner) Update(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msg = fmt.Sprintf(format, args...)
}

// Stop ends the animation and waits for the line to be cleared. It is safe
// to call more than once.
func (s *spinner) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}
