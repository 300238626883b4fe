package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	goruntime "runtime"
	"strings"
	"time"

	"gpsconv/internal/locator"
)

const installCommandTimeout = 30 * time.Minute

// ErrNoPackageManager means no supported package manager is on PATH.
var ErrNoPackageManager = errors.New("no supported package manager found")

type installOption struct {
	manager  string
	commands [][]string
}

// installer runs the first package manager that can install gpsbabel.
type installer struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
	logger   *slog.Logger
}

func newInstaller(logger *slog.Logger) *installer {
	if logger == nil {
		logger = slog.Default()
	}
	return &installer{
		goos:     goruntime.GOOS,
		lookPath: exec.LookPath,
		run:      runCommand,
		logger:   logger,
	}
}

// InstallConverter installs gpsbabel with a platform package manager, then
// resets discovery and confirms the binary can be located.
func (a *App) InstallConverter(ctx context.Context) (string, error) {
	if path, err := a.Locator.Locate(ctx); err == nil {
		a.logger.Info("converter already installed", "path", path)
		return path, nil
	}

	if a.installer == nil {
		a.installer = newInstaller(a.logger)
	}
	if err := a.installer.install(ctx); err != nil {
		return "", fmt.Errorf("install %s: %w", locator.BinaryName, err)
	}

	a.resetConverter()
	path, err := a.Locator.Locate(ctx)
	if err != nil {
		return "", fmt.Errorf("verify %s after install: %w", locator.BinaryName, err)
	}
	return path, nil
}

// options lists install strategies for the current OS, in preference order.
func (i *installer) options() []installOption {
	brew := installOption{
		manager:  "brew",
		commands: [][]string{{"brew", "install", "gpsbabel"}},
	}

	switch i.goos {
	case "darwin":
		return []installOption{brew}
	case "windows":
		return []installOption{
			{manager: "choco", commands: [][]string{{"choco", "install", "gpsbabel", "-y"}}},
			{manager: "scoop", commands: [][]string{{"scoop", "install", "gpsbabel"}}},
		}
	default:
		return []installOption{
			{
				manager: "apt-get",
				commands: [][]string{
					{"apt-get", "update"},
					{"apt-get", "install", "-y", "gpsbabel"},
				},
			},
			{manager: "dnf", commands: [][]string{{"dnf", "install", "-y", "gpsbabel"}}},
			{manager: "pacman", commands: [][]string{{"pacman", "-Sy", "--noconfirm", "gpsbabel"}}},
			{manager: "zypper", commands: [][]string{{"zypper", "install", "-y", "gpsbabel"}}},
			brew,
		}
	}
}

// install tries each available manager until one succeeds.
func (i *installer) install(ctx context.Context) error {
	options := i.options()
	errorsByManager := make([]string, 0, len(options))
	attempted := false

	for _, option := range options {
		if !i.available(option.manager) {
			continue
		}
		attempted = true
		i.logger.Info("installing converter", "manager", option.manager)

		err := i.runAll(ctx, option.manager, option.commands)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errorsByManager = append(errorsByManager, fmt.Sprintf("%s: %v", option.manager, err))
	}

	if !attempted {
		return fmt.Errorf("%w for %s", ErrNoPackageManager, i.goos)
	}
	return errors.New(strings.Join(errorsByManager, " | "))
}

func (i *installer) runAll(ctx context.Context, manager string, commands [][]string) error {
	for _, command := range commands {
		if err := i.runWithPossibleElevation(ctx, manager, command); err != nil {
			return err
		}
	}
	return nil
}

// runWithPossibleElevation retries system package managers through pkexec
// and non-interactive sudo on linux.
func (i *installer) runWithPossibleElevation(ctx context.Context, manager string, command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("empty command")
	}

	candidates := [][]string{command}
	if i.goos == "linux" && requiresElevation(manager) {
		if i.available("pkexec") {
			candidates = append(candidates, append([]string{"pkexec"}, command...))
		}
		if i.available("sudo") {
			candidates = append(candidates, append([]string{"sudo", "-n"}, command...))
		}
	}

	attemptErrors := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		err := i.run(ctx, candidate[0], candidate[1:]...)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		i.logger.Debug("install command failed", "command", formatCommand(candidate[0], candidate[1:]), "error", err)
		attemptErrors = append(attemptErrors, err.Error())
	}
	return errors.New(strings.Join(attemptErrors, " | "))
}

func (i *installer) available(name string) bool {
	_, err := i.lookPath(name)
	return err == nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, installCommandTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", formatCommand(name, args), installCommandTimeout)
	}

	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > 500 {
		trimmed = trimmed[:500] + "..."
	}
	if trimmed == "" {
		return fmt.Errorf("%s failed: %w", formatCommand(name, args), err)
	}
	return fmt.Errorf("%s failed: %w (%s)", formatCommand(name, args), err, trimmed)
}

func formatCommand(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func requiresElevation(manager string) bool {
	switch manager {
	case "apt-get", "dnf", "pacman", "zypper":
		return true
	default:
		return false
	}
}
