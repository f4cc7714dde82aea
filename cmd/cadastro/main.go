package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/cadastro/internal/config"
	"github.com/smileynet/cadastro/internal/prompt"
	"github.com/smileynet/cadastro/internal/registry"
	"github.com/smileynet/cadastro/internal/session"
	"github.com/smileynet/cadastro/internal/state"
	"github.com/smileynet/cadastro/internal/tui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI is the top-level command structure for cadastro.
type CLI struct {
	Version kong.VersionFlag `help:"Show version." short:"V"`
	Menu    MenuCmd          `cmd:"" default:"withargs" help:"Run the interactive client menu (default)."`
	List    ListCmd          `cmd:"" help:"List registered clients."`
	Browse  BrowseCmd        `cmd:"" help:"Browse clients in an interactive terminal view."`
	Config  ConfigCmd        `cmd:"" help:"Print the effective configuration."`
}

// RegistryFlags are shared by every command that opens the registry.
type RegistryFlags struct {
	File  string `help:"Backing JSON file (overrides config)." short:"f"`
	Plain bool   `help:"Force plain text output even if stdout is a TTY." default:"false"`
}

// apply copies flag overrides onto cfg.
func (f RegistryFlags) apply(cfg *config.Config) {
	if f.File != "" {
		cfg.Registry.File = f.File
	}
	if f.Plain {
		cfg.Display.Plain = true
	}
}

// loadConfig loads layered config from user and project paths with env overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadLayered(
		os.ExpandEnv("$HOME/.config/cadastro/config.yaml"),
		".cadastro/config.yaml",
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfig loads config, applies flag overrides, and validates the result.
func resolveConfig(flags RegistryFlags, extra ...func(*config.Config)) (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	flags.apply(cfg)
	for _, fn := range extra {
		fn(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openRegistry loads the registry named by cfg, reporting load results to w.
func openRegistry(cfg *config.Config, w io.Writer) *registry.Registry {
	return registry.New(state.NewFileStore(cfg.Registry.File),
		registry.WithOutput(w),
		registry.WithUpdateValidation(cfg.Update.Validate),
	)
}

// MenuCmd runs the interactive menu on stdin/stdout.
type MenuCmd struct {
	Registry  RegistryFlags `embed:""`
	RawUpdate bool          `help:"Store update answers as typed, without field validation." default:"false"`
}

// Run executes the menu command.
func (m *MenuCmd) Run() error {
	cfg, err := resolveConfig(m.Registry, func(c *config.Config) {
		if m.RawUpdate {
			c.Update.Validate = false
		}
	})
	if err != nil {
		return fmt.Errorf("menu: %w", err)
	}
	return m.run(cfg, os.Stdin, os.Stdout, tui.NewRenderer(os.Stdout, cfg.Display.Plain))
}

// run wires the registry and session over the given streams, enabling testable wiring.
func (m *MenuCmd) run(cfg *config.Config, in io.Reader, w io.Writer, view tui.Renderer) error {
	reg := openRegistry(cfg, w)
	sess := session.New(reg, prompt.New(in, w), w,
		session.WithRenderer(view),
		session.WithConfirmToken(cfg.Delete.ConfirmToken),
	)
	if err := sess.Run(); err != nil {
		return fmt.Errorf("menu: %w", err)
	}
	return nil
}

// ListCmd prints every registered client once and exits.
type ListCmd struct {
	Registry RegistryFlags `embed:""`
}

// Run executes the list command.
func (l *ListCmd) Run() error {
	cfg, err := resolveConfig(l.Registry)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	return l.run(cfg, os.Stdout, os.Stderr, tui.NewRenderer(os.Stdout, cfg.Display.Plain))
}

// run lists clients to w; load reports go to errW so piped output stays clean.
func (l *ListCmd) run(cfg *config.Config, w, errW io.Writer, view tui.Renderer) error {
	reg := openRegistry(cfg, errW)
	view.Records(w, reg.All())
	return nil
}

// BrowseCmd opens the read-only client browser.
type BrowseCmd struct {
	Registry RegistryFlags `embed:""`
}

// teaRunner abstracts Bubble Tea program execution for testing.
type teaRunner interface {
	Run() (tea.Model, error)
}

// Run executes the browse command.
func (b *BrowseCmd) Run() error {
	if !tui.IsTTY(os.Stdout) {
		return errors.New("browse: requires a terminal (TTY)")
	}

	cfg, err := resolveConfig(b.Registry)
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}

	reg := openRegistry(cfg, io.Discard)
	prog := tea.NewProgram(tui.NewBrowseModel(reg.Snapshot()), tea.WithAltScreen())
	return b.run(true, prog)
}

func (b *BrowseCmd) run(isTTY bool, prog teaRunner) error {
	if !isTTY {
		return errors.New("browse: requires a terminal (TTY)")
	}
	_, err := prog.Run()
	return err
}

// ConfigCmd prints the effective configuration as YAML.
type ConfigCmd struct {
	Registry RegistryFlags `embed:""`
}

// Run executes the config command.
func (c *ConfigCmd) Run() error {
	cfg, err := resolveConfig(c.Registry)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return c.run(cfg, os.Stdout)
}

func (c *ConfigCmd) run(cfg *config.Config, w io.Writer) error {
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Exit codes.
const (
	exitSuccess = 0
	exitRuntime = 1
	exitSetup   = 2
)

// exitCode maps an error to a process exit code.
// Input failures during a session are runtime errors; everything else is setup.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	if errors.Is(err, prompt.ErrInputFailed) {
		return exitRuntime
	}
	return exitSetup
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("cadastro"),
		kong.Description("Client registry backed by a local JSON file."),
		kong.Vars{"version": version + " " + commit + " " + date},
	)
	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
