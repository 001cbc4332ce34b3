package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"

	"bulkctl/cli/internal/terminal"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// startInlineSpinner starts a simple inline spinner animation on a single line.
// It displays rotating animation frames followed by the provided text, updating
// the same line in the terminal. The spinner runs in a separate goroutine and
// can be stopped by calling the returned function.
//
// Without a terminal nothing is drawn and the returned function is a no-op.
//
// Parameters:
//   - w: The io.Writer to write the spinner to (typically os.Stdout or os.Stderr)
//   - text: The text to display after the spinner animation
//   - frames: Array of strings representing animation frames (e.g., ["|", "/", "-", "\\"])
//   - interval: Time duration between frame updates
//
// Returns a function that stops the spinner and cleans up when called.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	if !terminal.IsInteractive() {
		return func() {}
	}
	if width := terminal.Width(); len(text)+2 > width {
		text = text[:max(width-2, 0)]
	}
	stop := make(chan struct{})
	var (
		wg   sync.WaitGroup
		once sync.Once
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
				// Clear the spinner line completely, then return
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s %s", frames[i%len(frames)], text)
				i++
			}
		}
	}()
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
}
