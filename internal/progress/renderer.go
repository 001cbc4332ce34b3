package progress

import (
	"os"
	"strconv"
	"sync"
	"time"

	"bulkctl/cli/internal/bulk"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
	"golang.org/x/term"
)

var frames = []string{"|", "/", "-", "\\"}

// Renderer draws State in a live terminal area. When stdout is not a
// terminal it prints one plain line per state change instead.
type Renderer struct {
	state       *State
	interactive bool

	mu       sync.Mutex
	area     *pterm.AreaPrinter
	stop     chan struct{}
	wg       sync.WaitGroup
	frame    int
	lastLine string
	lastSeen string
}

// NewRenderer creates a renderer for state.
func NewRenderer(state *State) *Renderer {
	return &Renderer{
		state:       state,
		interactive: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Start opens the live area and the spinner. It is a no-op without a terminal.
func (r *Renderer) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.interactive || r.area != nil {
		return
	}
	cursor.Hide()
	area, err := pterm.DefaultArea.WithRemoveWhenDone(true).Start()
	if err != nil {
		cursor.Show()
		r.interactive = false
		return
	}
	r.area = area
	r.stop = make(chan struct{})
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTicker(120 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				r.redraw()
			case <-r.stop:
				return
			}
		}
	}()
}

func (r *Renderer) redraw() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.area == nil {
		return
	}
	r.frame++
	line := r.state.Line(frames[r.frame%len(frames)])
	if line != r.lastLine {
		r.lastLine = line
		r.area.Update(line)
	}
}

// Observer returns the poller callback feeding this renderer.
func (r *Renderer) Observer() bulk.Observer {
	return func(info *bulk.JobInfo) {
		r.state.Observe(info)
		if r.interactive {
			return
		}
		key := info.State + "/" + strconv.FormatInt(info.RecordsProcessed, 10)
		r.mu.Lock()
		changed := key != r.lastSeen
		r.lastSeen = key
		r.mu.Unlock()
		if changed {
			pterm.Println(r.state.Line("•"))
		}
	}
}

// Stop removes the area and restores the cursor.
func (r *Renderer) Stop() {
	r.mu.Lock()
	if r.area == nil {
		r.mu.Unlock()
		return
	}
	close(r.stop)
	r.mu.Unlock()
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.area.Stop()
	r.area = nil
	cursor.Show()
}
