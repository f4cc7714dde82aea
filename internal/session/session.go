// Package session runs the interactive menu that drives the client registry.
package session

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/smileynet/cadastro/internal/client"
	"github.com/smileynet/cadastro/internal/prompt"
	"github.com/smileynet/cadastro/internal/registry"
	"github.com/smileynet/cadastro/internal/tui"
)

// Menu choices.
const (
	ChoiceCreate = "1"
	ChoiceUpdate = "2"
	ChoiceList   = "3"
	ChoiceDelete = "4"
	ChoiceExit   = "5"
)

// DefaultConfirmToken is the affirmative answer accepted by delete.
const DefaultConfirmToken = "s"

// ErrInvalidChoice indicates a menu selection outside the menu.
var ErrInvalidChoice = errors.New("invalid option")

// Menu lists the main menu entries in display order.
var Menu = []tui.MenuItem{
	{Key: ChoiceCreate, Label: "Register new client"},
	{Key: ChoiceUpdate, Label: "Update existing client"},
	{Key: ChoiceList, Label: "List registered clients"},
	{Key: ChoiceDelete, Label: "Delete a client"},
	{Key: ChoiceExit, Label: "Exit"},
}

const menuTitle = "Choose an option:"

// Action tells the loop what to do after a dispatched command.
type Action int

const (
	Continue Action = iota
	Exit
)

// Session owns the state of one interactive run.
type Session struct {
	reg          *registry.Registry
	in           *prompt.Prompter
	out          io.Writer
	view         tui.Renderer
	confirmToken string
}

// Option configures a Session.
type Option func(*Session)

// WithRenderer sets the renderer used for the menu and listings.
func WithRenderer(r tui.Renderer) Option {
	return func(s *Session) {
		s.view = r
	}
}

// WithConfirmToken sets the affirmative answer that confirms a delete.
func WithConfirmToken(token string) Option {
	return func(s *Session) {
		s.confirmToken = token
	}
}

// New creates a Session that prompts through in and reports to out.
func New(reg *registry.Registry, in *prompt.Prompter, out io.Writer, opts ...Option) *Session {
	s := &Session{
		reg:          reg,
		in:           in,
		out:          out,
		view:         tui.PlainRenderer{},
		confirmToken: DefaultConfirmToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run shows the menu and dispatches choices until the operator exits or the
// input closes. Errors from a single command are reported and the loop
// continues.
func (s *Session) Run() error {
	for {
		s.view.Menu(s.out, menuTitle, Menu)
		choice, err := s.in.Line("Option: ")
		if err != nil {
			return endOfInput(err)
		}

		action, err := s.Dispatch(choice)
		if err != nil {
			if isInputErr(err) {
				return endOfInput(err)
			}
			s.printf("error: %v", err)
		}
		if action == Exit {
			return nil
		}
	}
}

// Dispatch runs the command for one menu choice.
func (s *Session) Dispatch(choice string) (Action, error) {
	switch strings.TrimSpace(choice) {
	case ChoiceCreate:
		return Continue, s.Create()
	case ChoiceUpdate:
		return Continue, s.Update()
	case ChoiceList:
		s.List()
		return Continue, nil
	case ChoiceDelete:
		return Continue, s.Delete()
	case ChoiceExit:
		s.printf("Leaving the system. Goodbye!")
		return Exit, nil
	default:
		return Continue, fmt.Errorf("%w %q, try again", ErrInvalidChoice, choice)
	}
}

// Create asks for a tax identifier and, if it is free, the client's fields.
func (s *Session) Create() error {
	id, err := s.in.TaxID()
	if err != nil {
		return err
	}
	if s.reg.Has(id) {
		return fmt.Errorf("%w: CPF %s", registry.ErrConflict, id)
	}

	c, err := s.in.Client()
	if err != nil {
		return err
	}
	if err := s.reg.Create(id, c); err != nil {
		return err
	}
	s.printf("Client with CPF %s registered successfully!", id)
	return nil
}

// Update asks for a tax identifier and replacement values for an existing client.
// A blank answer keeps the current value.
func (s *Session) Update() error {
	id, err := s.in.TaxID()
	if err != nil {
		return err
	}
	if !s.reg.Exists(id) {
		return nil
	}
	cur, _ := s.reg.Get(id)

	s.printf("Leave a field blank to keep its current value.")
	var p registry.Patch
	if s.reg.ValidatesUpdates() {
		p, err = s.askValidatedPatch(cur)
	} else {
		p, err = s.askRawPatch(cur)
	}
	if err != nil {
		return err
	}

	if err := s.reg.Update(id, p); err != nil {
		return err
	}
	s.printf("Client with CPF %s updated successfully!", id)
	return nil
}

func (s *Session) askValidatedPatch(cur client.Client) (registry.Patch, error) {
	var p registry.Patch
	name, ok, err := prompt.AskOptional(s.in, fmt.Sprintf("New name (current: %s): ", cur.Name), client.NormalizeName)
	if err != nil {
		return p, err
	}
	if ok {
		p.Name = name
	}
	age, ok, err := prompt.AskOptional(s.in, fmt.Sprintf("New age (current: %d): ", cur.Age), client.ParseAge)
	if err != nil {
		return p, err
	}
	if ok {
		p.Age = fmt.Sprint(age)
	}
	email, ok, err := prompt.AskOptional(s.in, fmt.Sprintf("New e-mail (current: %s): ", cur.Email), client.ValidateEmail)
	if err != nil {
		return p, err
	}
	if ok {
		p.Email = email
	}
	return p, nil
}

func (s *Session) askRawPatch(cur client.Client) (registry.Patch, error) {
	var p registry.Patch
	var err error
	if p.Name, err = s.in.Line(fmt.Sprintf("New name (current: %s): ", cur.Name)); err != nil {
		return p, err
	}
	if p.Age, err = s.in.Line(fmt.Sprintf("New age (current: %d): ", cur.Age)); err != nil {
		return p, err
	}
	if p.Email, err = s.in.Line(fmt.Sprintf("New e-mail (current: %s): ", cur.Email)); err != nil {
		return p, err
	}
	return p, nil
}

// List renders every registered client in insertion order.
func (s *Session) List() {
	s.view.Records(s.out, s.reg.All())
}

// Delete asks for a tax identifier and removes the client after confirmation.
// Any answer other than the confirm token cancels silently.
func (s *Session) Delete() error {
	id, err := s.in.TaxID()
	if err != nil {
		return err
	}
	if !s.reg.Has(id) {
		return fmt.Errorf("%w: CPF %s", registry.ErrNotFound, id)
	}

	question := fmt.Sprintf("Are you sure you want to delete the client with CPF %s? (%s/N): ", id, strings.ToUpper(s.confirmToken))
	ok, err := s.in.Confirm(question, s.confirmToken)
	if err != nil || !ok {
		return err
	}
	if err := s.reg.Delete(id); err != nil {
		return err
	}
	s.printf("Client with CPF %s deleted successfully.", id)
	return nil
}

func (s *Session) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}

func isInputErr(err error) bool {
	return errors.Is(err, prompt.ErrInputClosed) || errors.Is(err, prompt.ErrInputFailed)
}

// endOfInput treats a closed input stream as a normal end of session.
func endOfInput(err error) error {
	if errors.Is(err, prompt.ErrInputClosed) {
		return nil
	}
	return err
}
