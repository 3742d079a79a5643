// Package convert runs the external tool that turns the patch jar into the
// runtime-loadable patch.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/magiconair/properties"
)

// LocalProperties is the per-checkout Android SDK settings file.
const LocalProperties = "local.properties"

var (
	// ErrNoSDK is returned when no SDK location is configured anywhere.
	ErrNoSDK = errors.New("convert: android sdk location not configured")
	// ErrNoBuildTools is returned when the build-tools version is unknown.
	ErrNoBuildTools = errors.New("convert: build-tools version not configured")
)

// ConversionError reports a converter that could not run or exited non-zero.
type ConversionError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("convert with %s: %v", e.Tool, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Converter turns the class jar at in into the patch at out. Convert blocks
// until the conversion finished.
type Converter interface {
	Convert(ctx context.Context, in, out string) error
}

// DX runs the legacy dx tool from an SDK build-tools directory.
type DX struct {
	SDKDir     string
	BuildTools string
	Log        *log.Logger
}

// Tool returns the dx executable path for the host OS.
func (d *DX) Tool() string {
	name := "dx"
	if runtime.GOOS == "windows" {
		name = "dx.bat"
	}
	return filepath.Join(d.SDKDir, "build-tools", d.BuildTools, name)
}

// Convert runs `dx --dex --output=<out> <in>`.
func (d *DX) Convert(ctx context.Context, in, out string) error {
	switch {
	case d.SDKDir == "":
		return &ConversionError{Tool: "dx", ExitCode: -1, Err: ErrNoSDK}
	case d.BuildTools == "":
		return &ConversionError{Tool: "dx", ExitCode: -1, Err: ErrNoBuildTools}
	}
	return run(ctx, d.Log, d.Tool(), []string{"--dex", "--output=" + out, in})
}

// Command runs an arbitrary converter such as d8. The placeholders {in} and
// {out} in Args are replaced with the jar and output paths.
type Command struct {
	Path string
	Args []string
	Log  *log.Logger
}

// Convert runs the command with placeholders expanded.
func (c *Command) Convert(ctx context.Context, in, out string) error {
	r := strings.NewReplacer("{in}", in, "{out}", out)
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = r.Replace(a)
	}
	return run(ctx, c.Log, c.Path, args)
}

func run(ctx context.Context, logger *log.Logger, tool string, args []string) error {
	if logger == nil {
		logger = log.Default()
	}
	logger.Debug("running converter", "tool", tool, "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, tool, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if s := strings.TrimSpace(stdout.String()); s != "" {
		logger.Debug("converter output", "tool", filepath.Base(tool), "stdout", s)
	}
	if err == nil {
		return nil
	}
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &ConversionError{Tool: filepath.Base(tool), ExitCode: code, Stderr: stderr.String(), Err: err}
}

// ResolveSDK finds the Android SDK: sdk.dir from <projectRoot>/local.properties
// when present, otherwise the ANDROID_HOME environment variable.
func ResolveSDK(projectRoot string) (string, error) {
	path := filepath.Join(projectRoot, LocalProperties)
	if _, err := os.Stat(path); err == nil {
		p, err := properties.LoadFile(path, properties.UTF8)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		if dir, ok := p.Get("sdk.dir"); ok && dir != "" {
			return dir, nil
		}
	}
	if dir := os.Getenv("ANDROID_HOME"); dir != "" {
		return dir, nil
	}
	return "", ErrNoSDK
}
