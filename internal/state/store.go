// Package state persists the client registry to a single JSON file.
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/smileynet/cadastro/internal/client"
)

// DefaultFile is the backing file name used when none is configured.
const DefaultFile = "cadastros.json"

// indent is the per-level indentation written to the backing file.
const indent = "    "

var (
	// ErrEmptyFile indicates the backing file exists but holds only whitespace.
	ErrEmptyFile = errors.New("state: empty file")
	// ErrMalformed indicates the backing file is not a JSON object of client records.
	ErrMalformed = errors.New("state: malformed file")
)

// Entry is one stored client under its tax identifier.
type Entry struct {
	ID     client.TaxID
	Client client.Client
}

// Snapshot is the full registry content in insertion order.
type Snapshot []Entry

// FileStore reads and writes a Snapshot as one JSON object.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save overwrites the backing file with snap. Keys keep snapshot order and
// the output is indented with four spaces, so equal snapshots always
// produce identical bytes.
func (s *FileStore) Save(snap Snapshot) error {
	data, err := Marshal(snap)
	if err != nil {
		return fmt.Errorf("state: marshaling: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("state: creating directory: %w", err)
		}
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("state: writing %s: %w", s.path, err)
	}
	return nil
}

// Load reads the backing file. It never returns a partial snapshot: on any
// error the snapshot is nil. A missing file yields an error matching
// os.ErrNotExist, a blank file ErrEmptyFile, and unparseable content
// ErrMalformed. Stored values are trusted and not re-validated.
func (s *FileStore) Load() (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("state: reading %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, s.path)
	}

	snap, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, s.path, err)
	}
	return snap, nil
}

// Marshal encodes snap as an indented JSON object keyed by tax identifier.
// An empty snapshot encodes as "{}". No trailing newline is written.
func Marshal(snap Snapshot) ([]byte, error) {
	if len(snap) == 0 {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, e := range snap {
		key, err := encode(string(e.ID), "")
		if err != nil {
			return nil, err
		}
		val, err := encode(e.Client, indent)
		if err != nil {
			return nil, err
		}
		buf.WriteString(indent)
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
		if i < len(snap)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// rawClient mirrors client.Client with pointers so missing fields are detected.
type rawClient struct {
	Name  *string `json:"nome"`
	Age   *int    `json:"idade"`
	Email *string `json:"email"`
}

// Unmarshal decodes a JSON object of client records, keeping key order.
// A repeated key keeps its first position and its last value.
func Unmarshal(data []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("top level must be an object, got %v", tok)
	}

	snap := Snapshot{}
	index := make(map[client.TaxID]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}

		var raw rawClient
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("record %q: %w", key, err)
		}
		if raw.Name == nil || raw.Age == nil || raw.Email == nil {
			return nil, fmt.Errorf("record %q: missing field", key)
		}

		e := Entry{
			ID:     client.TaxID(key),
			Client: client.Client{Name: *raw.Name, Age: *raw.Age, Email: *raw.Email},
		}
		if i, dup := index[e.ID]; dup {
			snap[i] = e
			continue
		}
		index[e.ID] = len(snap)
		snap = append(snap, e)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after object")
	}
	return snap, nil
}

func encode(v any, prefix string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
