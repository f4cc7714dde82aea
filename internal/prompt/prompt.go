// Package prompt reads operator input line by line and re-prompts until
// a value passes its validator.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/smileynet/cadastro/internal/client"
)

var (
	// ErrInputClosed indicates the input stream ended before a value was read.
	ErrInputClosed = errors.New("prompt: input closed")
	// ErrInputFailed indicates reading the input stream failed.
	ErrInputFailed = errors.New("prompt: reading input")
)

// Prompter reads answers from r and writes labels and diagnostics to w.
// It is not safe for concurrent use.
type Prompter struct {
	r *bufio.Reader
	w io.Writer
}

// New creates a Prompter over the given input and output.
func New(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{r: bufio.NewReader(r), w: w}
}

// Line writes label and returns the next input line without its line ending.
// A final line with no newline is still returned; ErrInputClosed is returned
// only when nothing was left to read.
func (p *Prompter) Line(label string) (string, error) {
	_, _ = fmt.Fprint(p.w, label)
	line, err := p.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: %v", ErrInputFailed, err)
		}
		if line == "" {
			_, _ = fmt.Fprintln(p.w)
			return "", ErrInputClosed
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Ask prompts with label until parse accepts the answer. Each rejection is
// reported to the operator and the question is asked again. The only error
// returned is an input error: ErrInputClosed or ErrInputFailed.
func Ask[T any](p *Prompter, label string, parse func(string) (T, error)) (T, error) {
	for {
		line, err := p.Line(label)
		if err != nil {
			var zero T
			return zero, err
		}
		v, err := parse(line)
		if err == nil {
			return v, nil
		}
		p.reject(err)
	}
}

// AskOptional behaves like Ask, except that a blank answer returns ok=false
// so the caller can keep its current value.
func AskOptional[T any](p *Prompter, label string, parse func(string) (T, error)) (v T, ok bool, err error) {
	for {
		line, err := p.Line(label)
		if err != nil {
			return v, false, err
		}
		if strings.TrimSpace(line) == "" {
			return v, false, nil
		}
		v, err = parse(line)
		if err == nil {
			return v, true, nil
		}
		p.reject(err)
	}
}

// Confirm asks question once and reports whether the answer equals token,
// ignoring case and surrounding space. Any other answer is a refusal.
func (p *Prompter) Confirm(question, token string) (bool, error) {
	line, err := p.Line(question)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), strings.TrimSpace(token)), nil
}

// Say writes a formatted line to the prompter's output.
func (p *Prompter) Say(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

// reject reports a validation failure using the rule's own message.
func (p *Prompter) reject(err error) {
	msg := err.Error()
	if u := errors.Unwrap(err); u != nil {
		msg = u.Error()
	}
	_, _ = fmt.Fprintf(p.w, "%s. Try again.\n", msg)
}

// TaxID asks for a tax identifier until a valid one is entered.
func (p *Prompter) TaxID() (client.TaxID, error) {
	return Ask(p, "Client CPF: ", client.ParseTaxID)
}

// Name asks for a client name until a valid one is entered.
func (p *Prompter) Name() (string, error) {
	return Ask(p, "Name: ", client.NormalizeName)
}

// Age asks for a client age until a valid one is entered.
func (p *Prompter) Age() (int, error) {
	return Ask(p, "Age: ", client.ParseAge)
}

// Email asks for a client e-mail until a valid one is entered.
func (p *Prompter) Email() (string, error) {
	return Ask(p, "E-mail: ", client.ValidateEmail)
}

// Client collects a complete, validated client record.
func (p *Prompter) Client() (client.Client, error) {
	name, err := p.Name()
	if err != nil {
		return client.Client{}, err
	}
	age, err := p.Age()
	if err != nil {
		return client.Client{}, err
	}
	email, err := p.Email()
	if err != nil {
		return client.Client{}, err
	}
	return client.Client{Name: name, Age: age, Email: email}, nil
}
