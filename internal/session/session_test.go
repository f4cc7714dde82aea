package session

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/smileynet/cadastro/internal/client"
	"github.com/smileynet/cadastro/internal/prompt"
	"github.com/smileynet/cadastro/internal/registry"
	"github.com/smileynet/cadastro/internal/state"
	"github.com/smileynet/cadastro/internal/tui"
)

type harness struct {
	path string
	reg  *registry.Registry
	out  *bytes.Buffer
	sess *Session
}

// newHarness builds a session over a temp backing file with optional seed content.
func newHarness(t *testing.T, input, seed string, opts ...registry.Option) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cadastros.json")
	if seed != "" {
		if err := os.WriteFile(path, []byte(seed), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	var out bytes.Buffer
	opts = append([]registry.Option{registry.WithOutput(&out)}, opts...)
	reg := registry.New(state.NewFileStore(path), opts...)
	sess := New(reg, prompt.New(strings.NewReader(input), &out), &out)
	return &harness{path: path, reg: reg, out: &out, sess: sess}
}

func (h *harness) file(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(h.path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

const seedJoao = `{"12345678901": {"nome": "JOAO", "idade": 30, "email": "joao@test.com"}}`

func TestRun_EndToEnd(t *testing.T) {
	// Given: no backing file and a scripted operator
	input := strings.Join([]string{
		"1", "12345678901", "joao", "30", "joao@test.com", // create
		"3",                   // list
		"4", "12345678901", "s", // delete, confirmed
		"3", // list again
		"5", // exit
	}, "\n") + "\n"
	h := newHarness(t, input, "")

	// When: the session runs
	if err := h.sess.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Then: the record was listed with normalized values, deleted, and the list is empty
	out := h.out.String()
	listed := strings.Index(out, "CPF: 12345678901\nName: JOAO\nAge: 30\nE-mail: joao@test.com\n")
	deleted := strings.Index(out, "deleted successfully")
	empty := strings.LastIndex(out, tui.EmptyMessage)
	if listed < 0 || deleted < 0 || empty < 0 {
		t.Fatalf("missing expected output:\n%s", out)
	}
	if !(listed < deleted && deleted < empty) {
		t.Errorf("events out of order (listed=%d deleted=%d empty=%d):\n%s", listed, deleted, empty, out)
	}
	if strings.Count(out, "CPF: 12345678901") != 1 {
		t.Errorf("record listed more than once:\n%s", out)
	}
	if !strings.Contains(out, "Goodbye") {
		t.Errorf("missing exit message:\n%s", out)
	}
	if got := h.file(t); got != "{}" {
		t.Errorf("file = %q, want %q", got, "{}")
	}
}

func TestRun_InvalidChoiceContinues(t *testing.T) {
	h := newHarness(t, "9\n\n5\n", "")

	if err := h.sess.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := h.out.String()
	if got := strings.Count(out, "error: invalid option"); got != 2 {
		t.Errorf("invalid option reported %d times, want 2:\n%s", got, out)
	}
	if got := strings.Count(out, menuTitle); got != 3 {
		t.Errorf("menu shown %d times, want 3", got)
	}
}

func TestRun_EndsOnClosedInput(t *testing.T) {
	// Given: input that stops in the middle of a create
	h := newHarness(t, "1\n12345678901\njoao\n", "")

	// When: the session runs
	err := h.sess.Run()

	// Then: it ends cleanly without registering anything
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if h.reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.reg.Len())
	}
}

func TestRun_ReturnsReadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cadastros.json")
	var out bytes.Buffer
	reg := registry.New(state.NewFileStore(path))
	sess := New(reg, prompt.New(iotest.ErrReader(errors.New("broken pipe")), &out), &out)

	if err := sess.Run(); !errors.Is(err, prompt.ErrInputFailed) {
		t.Fatalf("Run() error = %v, want ErrInputFailed", err)
	}
}

func TestCreate_DuplicateIsRejectedBeforeFields(t *testing.T) {
	// Given: an existing client
	h := newHarness(t, "12345678901\n", seedJoao)
	before := h.file(t)

	// When: the same CPF is created
	err := h.sess.Create()

	// Then: conflict, no field prompts, file untouched
	if !errors.Is(err, registry.ErrConflict) {
		t.Fatalf("Create() error = %v, want ErrConflict", err)
	}
	if strings.Contains(h.out.String(), "Name: ") {
		t.Error("fields were prompted for a duplicate CPF")
	}
	if h.file(t) != before {
		t.Error("backing file changed on duplicate create")
	}
}

func TestCreate_RepromptsInvalidFields(t *testing.T) {
	h := newHarness(t, "123\n123.456.789-01\nj\njoao\n-1\n30\nbad\njoao@test.com\n", "")

	if err := h.sess.Create(); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, ok := h.reg.Get("12345678901")
	want := client.Client{Name: "JOAO", Age: 30, Email: "joao@test.com"}
	if !ok || got != want {
		t.Errorf("stored = %+v, %v; want %+v", got, ok, want)
	}
	for _, msg := range []error{client.ErrInvalidTaxID, client.ErrInvalidName, client.ErrInvalidAge, client.ErrInvalidEmail} {
		if !strings.Contains(h.out.String(), msg.Error()) {
			t.Errorf("output missing diagnostic %q", msg)
		}
	}
}

func TestUpdate_Validated(t *testing.T) {
	// Given: an existing client and answers that keep the name, fix the age after a bad try, and change the e-mail
	h := newHarness(t, "12345678901\n\n150\n31\nnew@test.com\n", seedJoao)

	// When: update runs
	if err := h.sess.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	// Then: only the answered fields changed
	got, _ := h.reg.Get("12345678901")
	want := client.Client{Name: "JOAO", Age: 31, Email: "new@test.com"}
	if got != want {
		t.Errorf("client = %+v, want %+v", got, want)
	}
	if !strings.Contains(h.out.String(), client.ErrAgeOutOfRange.Error()) {
		t.Errorf("output missing age diagnostic:\n%s", h.out.String())
	}
	if !strings.Contains(h.file(t), `"idade": 31`) {
		t.Errorf("file not saved:\n%s", h.file(t))
	}
}

func TestUpdate_RawWhenValidationDisabled(t *testing.T) {
	h := newHarness(t, "12345678901\nm4ria\n400\nnope\n", seedJoao, registry.WithUpdateValidation(false))

	if err := h.sess.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ := h.reg.Get("12345678901")
	want := client.Client{Name: "M4RIA", Age: 400, Email: "nope"}
	if got != want {
		t.Errorf("client = %+v, want %+v", got, want)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	h := newHarness(t, "99999999999\n", seedJoao)

	if err := h.sess.Update(); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !strings.Contains(h.out.String(), "99999999999 was not found") {
		t.Errorf("output missing not-found diagnostic:\n%s", h.out.String())
	}
}

func TestDelete_Cancelled(t *testing.T) {
	for _, answer := range []string{"n", "sim", "", "yes"} {
		t.Run(answer, func(t *testing.T) {
			// Given: an existing client
			h := newHarness(t, "12345678901\n"+answer+"\n", seedJoao)

			// When: delete is not confirmed
			if err := h.sess.Delete(); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}

			// Then: registry and file are untouched and nothing more is printed
			if !h.reg.Has("12345678901") {
				t.Error("client removed without confirmation")
			}
			if h.file(t) != seedJoao {
				t.Errorf("file changed: %s", h.file(t))
			}
			if strings.Contains(h.out.String(), "deleted") {
				t.Errorf("unexpected delete message:\n%s", h.out.String())
			}
		})
	}
}

func TestDelete_ConfirmedCaseInsensitive(t *testing.T) {
	h := newHarness(t, "12345678901\nS\n", seedJoao)

	if err := h.sess.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if h.reg.Has("12345678901") {
		t.Error("client still present after confirmed delete")
	}
}

func TestDelete_CustomToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cadastros.json")
	if err := os.WriteFile(path, []byte(seedJoao), 0o644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	reg := registry.New(state.NewFileStore(path))
	sess := New(reg, prompt.New(strings.NewReader("12345678901\ny\n"), &out), &out, WithConfirmToken("y"))

	if err := sess.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if reg.Has("12345678901") {
		t.Error("client still present after confirming with custom token")
	}
	if !strings.Contains(out.String(), "(Y/N)") {
		t.Errorf("question does not show custom token:\n%s", out.String())
	}
}

func TestDelete_NotFound(t *testing.T) {
	h := newHarness(t, "99999999999\n", seedJoao)

	if err := h.sess.Delete(); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
	if strings.Contains(h.out.String(), "Are you sure") {
		t.Error("confirmation asked for a missing client")
	}
}

func TestDispatch_Actions(t *testing.T) {
	h := newHarness(t, "", "")

	tests := []struct {
		choice  string
		want    Action
		wantErr error
	}{
		{choice: ChoiceList, want: Continue},
		{choice: " 3 ", want: Continue},
		{choice: ChoiceExit, want: Exit},
		{choice: "x", want: Continue, wantErr: ErrInvalidChoice},
		{choice: ChoiceCreate, want: Continue, wantErr: prompt.ErrInputClosed},
	}
	for _, tt := range tests {
		t.Run(tt.choice, func(t *testing.T) {
			got, err := h.sess.Dispatch(tt.choice)
			if got != tt.want {
				t.Errorf("Dispatch(%q) action = %v, want %v", tt.choice, got, tt.want)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("Dispatch(%q) error = %v", tt.choice, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Dispatch(%q) error = %v, want %v", tt.choice, err, tt.wantErr)
			}
		})
	}
}

func TestRun_ReportsErrorsAndContinues(t *testing.T) {
	// Given: a duplicate create followed by exit
	h := newHarness(t, "1\n12345678901\n5\n", seedJoao)

	if err := h.sess.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := h.out.String()
	if !strings.Contains(out, "error: client already registered: CPF 12345678901") {
		t.Errorf("conflict not reported:\n%s", out)
	}
	if !strings.Contains(out, "Goodbye") {
		t.Errorf("loop did not continue to exit:\n%s", out)
	}
}
