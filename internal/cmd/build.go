package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"class-patcher/internal/config"
	"class-patcher/internal/convert"
	"class-patcher/internal/exclude"
	"class-patcher/internal/meta"
	"class-patcher/internal/output"
	"class-patcher/internal/pipeline"
	"class-patcher/internal/rewrite"
	"class-patcher/internal/source"
)

// NewBuildCmd creates the build command.
func NewBuildCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "build <input>...",
		Short: "Rewrite compiled classes and pack the changed ones into a patch",
		Long: `Rewrite every class file and jar given as input (directories are walked),
record their fingerprints and pack the classes that changed since the previous
build of the same variant.

The first build of a variant only records fingerprints; its patch is empty.

Values come from patch.yaml, PATCH_* environment variables and flags, in
increasing precedence.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runBuild,
	}

	f := c.Flags()
	f.String("application-name", "", "Application class, never patched (env: PATCH_APPLICATION_NAME)")
	f.String("output", "", "Patch output root; the variant is appended (env: PATCH_OUTPUT)")
	f.Bool("debug-on", false, "Also patch debug variants (env: PATCH_DEBUG_ON)")
	f.String("variant", "", "Build variant (env: PATCH_VARIANT, default: release)")
	f.String("project-dir", "", "Application module directory (env: PATCH_PROJECT_DIR)")
	f.String("build-dir", "", "Module build directory (env: PATCH_BUILD_DIR)")
	f.String("sdk-dir", "", "Android SDK directory (env: PATCH_SDK_DIR)")
	f.String("build-tools-version", "", "SDK build-tools version for dx (env: PATCH_BUILD_TOOLS_VERSION)")
	f.StringSlice("converter", nil, "Converter command replacing dx; {in} and {out} are substituted (env: PATCH_CONVERTER)")
	f.String("marker", "", "Internal name of the marker class (env: PATCH_MARKER)")
	f.Int("workers", 0, "Concurrent rewrites, 0 = one per CPU (env: PATCH_WORKERS)")

	return c
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.SkipVariant() {
		output.Info("debug variant, nothing to patch", "variant", cfg.Variant)
		return nil
	}

	info := meta.Detect(cfg.ProjectDir)
	if cfg.ApplicationName == "" && info.ApplicationClass != "" {
		cfg.ApplicationName = info.ApplicationClass
		output.Debug("application class from manifest", "name", cfg.ApplicationName)
	}
	if cfg.BuildToolsVersion == "" {
		cfg.BuildToolsVersion = info.BuildToolsVersion
	}
	if err := cfg.Validate(); err != nil {
		return NewExitError(err, ExitConfigError)
	}

	units, err := source.Collect(args)
	if err != nil {
		return err
	}
	output.Debug("collected build inputs", "units", len(units), "variant", cfg.Variant)

	rep, err := pipeline.Run(cmd.Context(), units, pipeline.Options{
		LedgerPath: cfg.LedgerPath(),
		PatchJar:   cfg.PatchClassJar(),
		Output:     cfg.PatchJar(),
		Policy:     exclude.New(cfg.ApplicationName),
		Rewriter:   rewrite.New(cfg.Marker),
		Converter:  newConverter(cfg),
		Workers:    cfg.Workers,
		Log:        output.Logger,
	})
	if err != nil {
		return fmt.Errorf("build failed at %s: %w", rep.State, err)
	}

	s := rep.Summary
	output.Info("build finished",
		"rewritten", rep.Rewritten,
		"excluded", rep.Excluded,
		"failed", rep.Failed,
		"added", len(s.Added),
		"changed", len(s.Changed),
		"removed", len(s.Removed),
		"renamed", len(s.Renamed),
		"patched", len(rep.Included),
	)
	if rep.Output != "" {
		fmt.Fprintln(cmd.OutOrStdout(), rep.Output)
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader()
	if err := loader.BindFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	cfg, err := loader.LoadWithDefaults(configFlag)
	if err != nil {
		return nil, NewExitError(err, ExitConfigError)
	}
	return cfg, nil
}

// newConverter picks the configured converter command, or dx from the SDK.
func newConverter(cfg *config.Config) convert.Converter {
	if len(cfg.Converter) > 0 {
		return &convert.Command{Path: cfg.Converter[0], Args: cfg.Converter[1:], Log: output.Logger}
	}
	sdk := cfg.SDKDir
	if sdk == "" {
		var err error
		if sdk, err = resolveSDK(cfg.ProjectDir); err != nil {
			// Conversion reports the missing SDK if it is ever needed.
			output.Debug("no Android SDK found", "err", err)
		}
	}
	return &convert.DX{SDKDir: sdk, BuildTools: cfg.BuildToolsVersion, Log: output.Logger}
}

// resolveSDK looks for local.properties in the module directory, then in the
// root project above it.
func resolveSDK(projectDir string) (string, error) {
	if _, err := os.Stat(filepath.Join(projectDir, convert.LocalProperties)); err == nil {
		return convert.ResolveSDK(projectDir)
	}
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return "", err
	}
	dir, err := convert.ResolveSDK(filepath.Dir(abs))
	if errors.Is(err, convert.ErrNoSDK) {
		return "", fmt.Errorf("%w (set sdkDir, local.properties sdk.dir or ANDROID_HOME)", err)
	}
	return dir, err
}
