package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/boss-rush/internal/client"
	"github.com/jwebster45206/boss-rush/internal/logger"
	"github.com/jwebster45206/boss-rush/pkg/api"
	"github.com/jwebster45206/boss-rush/pkg/encounter"
	"github.com/jwebster45206/boss-rush/pkg/prefetch"
)

const Tagline = "Defeat the bosses with sustainable choices"

// CLI is the console's command line.
type CLI struct {
	APIURL     string        `name:"api-url" help:"Game service base URL." env:"API_BASE_URL" default:"http://localhost:8080"`
	Name       string        `help:"Player name. Prompted for when empty." short:"n"`
	Difficulty string        `help:"Starting difficulty." enum:"easy,medium,hard" default:"medium" short:"d"`
	Stream     bool          `help:"Reveal scenes word by word." default:"true" negatable:""`
	Timeout    time.Duration `help:"HTTP request timeout." env:"HTTP_TIMEOUT" default:"30s"`
	Interval   time.Duration `help:"How often to ask the service to prepare scenes." env:"PREFETCH_INTERVAL" default:"4s"`
	LogFile    string        `help:"Write logs to this file. Logs are discarded otherwise." type:"path"`
	LogLevel   string        `help:"Log level." env:"LOG_LEVEL" enum:"debug,info,warn,error" default:"info"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("boss-rush"),
		kong.Description(Tagline),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(cli.Run())
}

func (c *CLI) Run() error {
	log, closeLog, err := c.logger()
	if err != nil {
		return err
	}
	defer closeLog()

	backend := client.New(c.APIURL, &http.Client{Timeout: c.Timeout}, log)

	healthCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = backend.Health(healthCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("could not connect to the game service at %s (is it running? try: docker-compose up -d): %w", c.APIURL, err)
	}

	scheduler := prefetch.New(encounter.PrefetchTrigger(backend),
		prefetch.WithInterval(c.Interval),
		prefetch.WithLogger(log))
	machine := encounter.New(backend,
		encounter.WithPrefetcher(scheduler),
		encounter.WithStreaming(c.Stream),
		encounter.WithLogger(log))
	defer scheduler.Stop()

	ui := NewConsoleUI(machine, scheduler, c.Name, difficultyFromFlag(c.Difficulty))
	p := tea.NewProgram(ui, tea.WithAltScreen())
	ui.bridge.program = p
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	machine.Wait()
	return nil
}

// logger writes to LogFile when set. A TUI owns the terminal, so there is no
// stderr fallback.
func (c *CLI) logger() (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.LogFile == "" {
		return logger.New(io.Discard, "development", level), func() {}, nil
	}
	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logger.New(f, "development", level), func() { _ = f.Close() }, nil
}

func difficultyFromFlag(s string) api.Difficulty {
	d := api.Difficulty(s)
	if !d.Valid() {
		return api.DifficultyMedium
	}
	return d
}
