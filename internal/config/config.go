// Package config provides configuration loading for the patcher.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"class-patcher/internal/ledger"
)

// File names inside a variant output directory.
const (
	PatchClassJarName = "patchClass.jar"
	PatchJarName      = "patch.jar"
)

// DefaultVariant is used when no build variant is configured.
const DefaultVariant = "release"

// ErrInvalid marks configuration that cannot drive a build.
var ErrInvalid = errors.New("invalid configuration")

// Config is the patcher configuration.
// Loaded from patch.yaml, PATCH_* environment variables and flags, in
// increasing precedence.
type Config struct {
	// ApplicationName is the fully qualified application class. It is never
	// patched because it is loaded before the patch.
	// Env: PATCH_APPLICATION_NAME
	ApplicationName string `mapstructure:"applicationName"`

	// Output overrides the patch output root; the variant name is appended.
	// Env: PATCH_OUTPUT, Default: <buildDir>/patch
	Output string `mapstructure:"output"`

	// DebugOn enables patching of debug variants.
	// Env: PATCH_DEBUG_ON
	DebugOn bool `mapstructure:"debugOn"`

	// Variant is the build variant being patched.
	// Env: PATCH_VARIANT, Default: "release"
	Variant string `mapstructure:"variant"`

	// ProjectDir is the application module directory.
	// Env: PATCH_PROJECT_DIR, Default: "."
	ProjectDir string `mapstructure:"projectDir"`

	// BuildDir is the module build directory.
	// Env: PATCH_BUILD_DIR, Default: <projectDir>/build
	BuildDir string `mapstructure:"buildDir"`

	// SDKDir is the Android SDK; local.properties and ANDROID_HOME are
	// consulted when empty.
	// Env: PATCH_SDK_DIR
	SDKDir string `mapstructure:"sdkDir"`

	// BuildToolsVersion selects the dx binary; detected from build.gradle
	// when empty.
	// Env: PATCH_BUILD_TOOLS_VERSION
	BuildToolsVersion string `mapstructure:"buildToolsVersion"`

	// Converter replaces dx with an arbitrary command. The first element is
	// the executable; {in} and {out} are substituted in the rest.
	// Env: PATCH_CONVERTER (comma separated)
	Converter []string `mapstructure:"converter"`

	// Marker is the internal name of the class referenced from constructors.
	// Env: PATCH_MARKER
	Marker string `mapstructure:"marker"`

	// Workers bounds concurrent rewrites; 0 means one per CPU.
	// Env: PATCH_WORKERS
	Workers int `mapstructure:"workers"`
}

// WithDefaults returns a copy with empty fields defaulted.
func (c Config) WithDefaults() *Config {
	if c.Variant == "" {
		c.Variant = DefaultVariant
	}
	if c.ProjectDir == "" {
		c.ProjectDir = "."
	}
	if c.BuildDir == "" {
		c.BuildDir = filepath.Join(c.ProjectDir, "build")
	}
	return &c
}

// Validate reports configuration that cannot drive a build.
func (c *Config) Validate() error {
	switch {
	case c.ApplicationName == "":
		return fmt.Errorf("%w: applicationName is required", ErrInvalid)
	case strings.ContainsAny(c.ApplicationName, "/\\"):
		return fmt.Errorf("%w: applicationName %q must be a dotted class name", ErrInvalid, c.ApplicationName)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative", ErrInvalid)
	}
	return nil
}

// SkipVariant reports whether the configured variant is a debug variant that
// must not be patched.
func (c *Config) SkipVariant() bool {
	return !c.DebugOn && strings.Contains(strings.ToLower(c.Variant), "debug")
}

// OutputDir is <output>/<variant> or <buildDir>/patch/<variant>.
func (c *Config) OutputDir() string {
	if c.Output != "" {
		return filepath.Join(c.Output, c.Variant)
	}
	return filepath.Join(c.BuildDir, "patch", c.Variant)
}

// LedgerPath is the fingerprint ledger of the variant.
func (c *Config) LedgerPath() string { return filepath.Join(c.OutputDir(), ledger.FileName) }

// PatchClassJar is the intermediate jar of changed classes.
func (c *Config) PatchClassJar() string { return filepath.Join(c.OutputDir(), PatchClassJarName) }

// PatchJar is the converted patch.
func (c *Config) PatchJar() string { return filepath.Join(c.OutputDir(), PatchJarName) }
