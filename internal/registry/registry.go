// Package registry holds the in-memory client registry and writes it back
// to its store after every mutation.
package registry

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/smileynet/cadastro/internal/client"
	"github.com/smileynet/cadastro/internal/state"
)

var (
	// ErrNotFound indicates no client is registered under the tax identifier.
	ErrNotFound = errors.New("client not found")
	// ErrConflict indicates a client is already registered under the tax identifier.
	ErrConflict = errors.New("client already registered")
)

// Store loads and saves the full registry content.
// Defined here (the consumer); state.FileStore is the production implementation.
type Store interface {
	Load() (state.Snapshot, error)
	Save(state.Snapshot) error
}

// Patch holds replacement values typed by the operator during an update.
// An empty field keeps the current value.
type Patch struct {
	Name  string
	Age   string
	Email string
}

// Registry maps tax identifiers to clients, preserving insertion order.
// It is not safe for concurrent use.
type Registry struct {
	store           Store
	w               io.Writer
	validateUpdates bool

	ids     []client.TaxID
	clients map[client.TaxID]client.Client
}

// Option configures a Registry.
type Option func(*Registry)

// WithOutput sets where load, save, and lookup reports are written.
func WithOutput(w io.Writer) Option {
	return func(r *Registry) {
		r.w = w
	}
}

// WithUpdateValidation controls whether Update applies the field rules.
// It is on by default; turning it off restores the relaxed update behaviour
// of older releases, where replacements were stored as typed.
func WithUpdateValidation(on bool) Option {
	return func(r *Registry) {
		r.validateUpdates = on
	}
}

// New creates a Registry and loads its content from store. Load problems
// are reported and leave the registry empty; they never fail construction.
func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:           store,
		w:               io.Discard,
		validateUpdates: true,
		clients:         make(map[client.TaxID]client.Client),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.load()
	return r
}

// load replaces the registry content with the store's. Anything short of a
// clean read leaves the registry empty.
func (r *Registry) load() {
	snap, err := r.store.Load()
	switch {
	case err == nil:
		for _, e := range snap {
			r.put(e.ID, e.Client)
		}
		r.report("Loaded %d %s.", len(snap), plural(len(snap)))
	case errors.Is(err, os.ErrNotExist):
		r.report("Data file not found. A new one will be created.")
	case errors.Is(err, state.ErrEmptyFile):
		r.report("Data file is empty.")
	case errors.Is(err, state.ErrMalformed):
		r.report("error: data file is not valid JSON: %v", err)
	default:
		r.report("warning: loading clients: %v", err)
	}
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	return len(r.ids)
}

// Has reports whether id is registered, without printing anything.
func (r *Registry) Has(id client.TaxID) bool {
	_, ok := r.clients[id]
	return ok
}

// Exists reports whether id is registered. A missing id is reported to the
// registry's output.
func (r *Registry) Exists(id client.TaxID) bool {
	if !r.Has(id) {
		r.report("Client with CPF %s was not found.", id)
		return false
	}
	return true
}

// Get returns the client registered under id.
func (r *Registry) Get(id client.TaxID) (client.Client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

// All yields every client in insertion order. The sequence reflects the
// registry at the time each element is reached.
func (r *Registry) All() iter.Seq2[client.TaxID, client.Client] {
	return func(yield func(client.TaxID, client.Client) bool) {
		for _, id := range r.ids {
			if !yield(id, r.clients[id]) {
				return
			}
		}
	}
}

// ValidatesUpdates reports whether Update applies the field rules.
func (r *Registry) ValidatesUpdates() bool {
	return r.validateUpdates
}

// Create registers c under id and saves. An existing id returns ErrConflict
// without touching the registry or the store.
func (r *Registry) Create(id client.TaxID, c client.Client) error {
	if r.Has(id) {
		return fmt.Errorf("%w: CPF %s", ErrConflict, id)
	}
	if _, err := client.ParseTaxID(string(id)); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	r.put(id, c)
	r.persist()
	return nil
}

// Update applies p to the client registered under id and saves. If any
// replacement is rejected nothing is changed.
func (r *Registry) Update(id client.TaxID, p Patch) error {
	c, ok := r.clients[id]
	if !ok {
		return fmt.Errorf("%w: CPF %s", ErrNotFound, id)
	}

	var err error
	if r.validateUpdates {
		c, err = applyValidated(c, p)
	} else {
		c, err = applyRaw(c, p)
	}
	if err != nil {
		return err
	}

	r.clients[id] = c
	r.persist()
	return nil
}

// Delete removes the client registered under id and saves.
func (r *Registry) Delete(id client.TaxID) error {
	if !r.Has(id) {
		return fmt.Errorf("%w: CPF %s", ErrNotFound, id)
	}
	delete(r.clients, id)
	r.ids = slices.DeleteFunc(r.ids, func(v client.TaxID) bool { return v == id })
	r.persist()
	return nil
}

// Snapshot returns a copy of the registry content in insertion order.
func (r *Registry) Snapshot() state.Snapshot {
	snap := make(state.Snapshot, 0, len(r.ids))
	for id, c := range r.All() {
		snap = append(snap, state.Entry{ID: id, Client: c})
	}
	return snap
}

// Save writes the whole registry to the store. Failures are reported, not
// returned: the in-memory registry stays authoritative for the session.
func (r *Registry) Save() {
	r.persist()
}

func (r *Registry) persist() {
	if err := r.store.Save(r.Snapshot()); err != nil {
		r.report("warning: saving clients: %v", err)
		return
	}
	r.report("Data saved.")
}

// put inserts or replaces, keeping the original position of existing ids.
func (r *Registry) put(id client.TaxID, c client.Client) {
	if _, ok := r.clients[id]; !ok {
		r.ids = append(r.ids, id)
	}
	r.clients[id] = c
}

func (r *Registry) report(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format+"\n", args...)
}

func applyValidated(c client.Client, p Patch) (client.Client, error) {
	if p.Name != "" {
		name, err := client.NormalizeName(p.Name)
		if err != nil {
			return c, err
		}
		c.Name = name
	}
	if p.Age != "" {
		age, err := client.ParseAge(p.Age)
		if err != nil {
			return c, err
		}
		c.Age = age
	}
	if p.Email != "" {
		email, err := client.ValidateEmail(p.Email)
		if err != nil {
			return c, err
		}
		c.Email = email
	}
	return c, nil
}

// applyRaw stores replacements as typed; only the age must parse as an integer.
func applyRaw(c client.Client, p Patch) (client.Client, error) {
	if p.Name != "" {
		c.Name = strings.ToUpper(p.Name)
	}
	if p.Age != "" {
		age, err := strconv.Atoi(strings.TrimSpace(p.Age))
		if err != nil {
			return c, fmt.Errorf("%w: %q", client.ErrInvalidAge, p.Age)
		}
		c.Age = age
	}
	if p.Email != "" {
		c.Email = p.Email
	}
	return c, nil
}

func plural(n int) string {
	if n == 1 {
		return "client"
	}
	return "clients"
}
