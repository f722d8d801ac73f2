package repl

import (
	"fmt"
	"io"
)

// DefaultTitle is printed before the first prompt.
const DefaultTitle = "Chat with Gemini Agent (type 'exit' to quit)"

// PlainPresenter writes unadorned text.
type PlainPresenter struct {
	out    io.Writer
	errOut io.Writer
	title  string
}

// NewPlainPresenter writes the conversation to out and turn errors to errOut.
func NewPlainPresenter(out, errOut io.Writer, title string) *PlainPresenter {
	if title == "" {
		title = DefaultTitle
	}
	return &PlainPresenter{out: out, errOut: errOut, title: title}
}

func (p *PlainPresenter) Greet() {
	fmt.Fprintln(p.out, p.title)
}

func (p *PlainPresenter) Prompt() string {
	return "You: "
}

func (p *PlainPresenter) BeginTurn() {
	fmt.Fprint(p.out, "Agent: ")
}

func (p *PlainPresenter) WriteFragment(text string) {
	fmt.Fprint(p.out, text)
}

func (p *PlainPresenter) EndTurn() {
	fmt.Fprintln(p.out)
}

func (p *PlainPresenter) TurnError(err error) {
	fmt.Fprintf(p.errOut, "\n[Error during execution]: %v\n", err)
}

func (p *PlainPresenter) Goodbye() {}

var _ Presenter = (*PlainPresenter)(nil)
