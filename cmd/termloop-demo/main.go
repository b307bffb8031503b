// Command termloop-demo is a small counter application, driven by a
// termloop reactor: k or up increments, j or down decrements, q quits.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joeycumines/go-termloop/tui"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/juju/fslock"
)

const lockName = "termloop-demo.lock"

type config struct {
	fps     int
	logPath string
	lockDir string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	cfg, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	lock, err := acquireLock(cfg.lockDir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}
	defer lock.Unlock()

	logger, closeLog, err := openLogger(cfg.logPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: failed to open log: %s\n", err)
		return 1
	}
	defer closeLog()

	app, err := tui.NewApplicationLoop[*counter](
		tui.WithFrameRate(cfg.fps),
		tui.WithLogger(logger),
	)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}

	state := &counter{}
	if err := app.Run(state); err != nil {
		logger.Err().
			Err(err).
			Log(`demo: exited with error`)
		_, _ = fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}

	logger.Info().
		Int(`count`, state.count).
		Log(`demo: exited`)
	return 0
}

func parseFlags(args []string, stderr io.Writer) (*config, error) {
	cfg := &config{}
	fs := flag.NewFlagSet("termloop-demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&cfg.fps, "fps", 30, "frames drawn per second")
	fs.StringVar(&cfg.logPath, "log", "", "write JSON logs to this file (disabled if empty)")
	fs.StringVar(&cfg.lockDir, "lock-dir", os.TempDir(), "directory for the single instance lock")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.fps <= 0 {
		_, _ = fmt.Fprintf(stderr, "invalid -fps: %d\n", cfg.fps)
		return nil, flag.ErrHelp
	}
	return cfg, nil
}

// acquireLock prevents two demos from fighting over one terminal session.
func acquireLock(dir string) (*fslock.Lock, error) {
	lock := fslock.New(filepath.Join(dir, lockName))
	if err := lock.TryLock(); err != nil {
		return nil, fmt.Errorf("termloop-demo is already running: %w", err)
	}
	return lock, nil
}

// openLogger logs to a file, since the terminal is being drawn on. An empty
// path returns a nil (disabled) logger.
func openLogger(path string) (*logiface.Logger[logiface.Event], func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(f)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
	return logger, func() { _ = f.Close() }, nil
}
