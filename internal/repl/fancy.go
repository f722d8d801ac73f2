package repl

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A4FCF", Dark: "#9D8CFF"}
	colorUser    = lipgloss.AdaptiveColor{Light: "#007A5E", Dark: "#3EE6B0"}
	colorError   = lipgloss.AdaptiveColor{Light: "#C1121F", Dark: "#FF6B6B"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#8A8A8A"}

	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 2).
			MarginBottom(1)

	bannerTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	userLabelStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorUser)
	agentLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	errorStyle       = lipgloss.NewStyle().Foreground(colorError)
	mutedStyle       = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
)

// clearLine erases from the cursor to the end of the line.
const clearLine = "\x1b[K"

// FancyPresenter draws a banner, colored labels, a thinking spinner and types
// the reply out character by character.
type FancyPresenter struct {
	out         io.Writer
	errOut      io.Writer
	title       string
	typingDelay time.Duration
	frames      []string
	interval    time.Duration

	mu      sync.Mutex
	spinner *spinnerTicker
}

// NewFancyPresenter creates the decorated presenter. A zero typingDelay
// prints fragments at once.
func NewFancyPresenter(out, errOut io.Writer, title string, typingDelay time.Duration) *FancyPresenter {
	if title == "" {
		title = "Gemini Agent"
	}
	return &FancyPresenter{
		out:         out,
		errOut:      errOut,
		title:       title,
		typingDelay: typingDelay,
		frames:      spinner.Dot.Frames,
		interval:    spinner.Dot.FPS,
	}
}

func (p *FancyPresenter) Greet() {
	banner := lipgloss.JoinVertical(lipgloss.Left,
		bannerTitleStyle.Render("✨ "+p.title),
		mutedStyle.Render("Type 'exit' to quit."),
	)
	fmt.Fprintln(p.out, bannerStyle.Render(banner))
}

func (p *FancyPresenter) Prompt() string {
	return userLabelStyle.Render("You:") + " "
}

func (p *FancyPresenter) BeginTurn() {
	label := agentLabelStyle.Render("Agent:") + " "

	p.mu.Lock()
	fmt.Fprint(p.out, label)
	p.mu.Unlock()

	p.spinner = startSpinner(p.out, &p.mu, label, p.frames, p.interval)
}

// WriteFragment stops the spinner on the first fragment, then types text.
func (p *FancyPresenter) WriteFragment(text string) {
	p.stopSpinner()

	for _, r := range text {
		p.mu.Lock()
		fmt.Fprint(p.out, string(r))
		p.mu.Unlock()
		if p.typingDelay > 0 {
			time.Sleep(p.typingDelay)
		}
	}
}

func (p *FancyPresenter) EndTurn() {
	p.stopSpinner()
	fmt.Fprintln(p.out)
}

func (p *FancyPresenter) TurnError(err error) {
	p.stopSpinner()
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.errOut, errorStyle.Render(fmt.Sprintf("[Error during execution]: %v", err)))
}

func (p *FancyPresenter) Goodbye() {
	p.stopSpinner()
	fmt.Fprintln(p.out, mutedStyle.Render("Goodbye!"))
}

func (p *FancyPresenter) stopSpinner() {
	if p.spinner != nil {
		p.spinner.stop()
		p.spinner = nil
	}
}

// spinnerTicker redraws a spinner frame after label until stopped.
type spinnerTicker struct {
	quit chan struct{}
	done chan struct{}
}

func startSpinner(out io.Writer, mu *sync.Mutex, label string, frames []string, interval time.Duration) *spinnerTicker {
	s := &spinnerTicker{
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	if len(frames) == 0 || interval <= 0 {
		close(s.done)
		return s
	}

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			mu.Lock()
			frame := strings.TrimSpace(frames[i%len(frames)])
			fmt.Fprint(out, "\r"+label+mutedStyle.Render(frame+" thinking…")+clearLine)
			mu.Unlock()

			select {
			case <-s.quit:
				mu.Lock()
				fmt.Fprint(out, "\r"+label+clearLine)
				mu.Unlock()
				return
			case <-ticker.C:
			}
		}
	}()

	return s
}

// stop returns once the spinner line has been cleared.
func (s *spinnerTicker) stop() {
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
	<-s.done
}

var _ Presenter = (*FancyPresenter)(nil)
