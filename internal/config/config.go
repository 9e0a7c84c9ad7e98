// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bleepbuild/bleep/internal/issue"
	"github.com/bleepbuild/bleep/pkg/cueutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "bleep"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "bleep"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes every environment override (BLEEP_OUT_DIR, ...).
	EnvPrefix = "BLEEP"
)

//go:embed config_schema.cue
var configSchema string

// FileName returns the config file name looked up in the project directory.
func FileName() string {
	return ConfigFileName + "." + ConfigFileExt
}

// loadWithOptions performs option-driven config loading. The returned path is
// empty when no config file was found and defaults (plus env) were used.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	// An explicit --config path is used exclusively and must exist.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'bleep config init' to create a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		candidate := filepath.Join(opts.Dir, FileName())
		if fileExists(candidate) {
			resolvedPath = candidate
		}
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'bleep config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check BLEEP_* environment variables for typos").
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("ui_dir", d.UIDir)
	v.SetDefault("out_dir", d.OutDir)
	v.SetDefault("tsconfig_dir", d.TsconfigDir)
	v.SetDefault("modules.patterns", d.Modules.Patterns)
	v.SetDefault("typecheck.enabled", d.Typecheck.Enabled)
	v.SetDefault("typecheck.command", d.Typecheck.Command)
	v.SetDefault("typecheck.success_marker", d.Typecheck.SuccessMarker)
	v.SetDefault("css.enabled", d.CSS.Enabled)
	v.SetDefault("css.command", d.CSS.Command)
	v.SetDefault("css.dir", d.CSS.Dir)
	v.SetDefault("css.benign_exit_code", d.CSS.BenignExitCode)
	v.SetDefault("css.max_retries", d.CSS.MaxRetries)
	v.SetDefault("css.retry_delay", d.CSS.RetryDelay)
	v.SetDefault("bundler.command", d.Bundler.Command)
	v.SetDefault("hooks.runtime", string(d.Hooks.Runtime))
	v.SetDefault("hooks.pre_failure", string(d.Hooks.PreFailure))
	v.SetDefault("hooks.env_file", d.Hooks.EnvFile)
	v.SetDefault("watch.manifests", d.Watch.Manifests)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
	v.SetDefault("ui.verbose", d.UI.Verbose)
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Note: This uses manual CUE parsing instead of cueutil.ParseAndDecode because
// config decodes to map[string]any for Viper and every field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	// Merge preserves defaults and leaves env overrides on top.
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// Resolve returns a copy of cfg with every directory made absolute against base.
// An empty CSS dir falls back to the UI dir.
func (c *Config) Resolve(base string) *Config {
	out := *c
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	out.UIDir = abs(c.UIDir)
	out.OutDir = abs(c.OutDir)
	out.TsconfigDir = abs(c.TsconfigDir)
	if c.CSS.Dir == "" {
		out.CSS.Dir = out.UIDir
	} else {
		out.CSS.Dir = abs(c.CSS.Dir)
	}
	if c.Hooks.EnvFile != "" {
		optional := strings.HasSuffix(c.Hooks.EnvFile, "?")
		p := abs(strings.TrimSuffix(c.Hooks.EnvFile, "?"))
		if optional {
			p += "?"
		}
		out.Hooks.EnvFile = p
	}
	return &out
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default bleep.cue into dir unless one exists.
// It reports the path and whether the file was created.
func CreateDefaultConfig(dir string) (string, bool, error) {
	cfgPath := filepath.Join(dir, FileName())

	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, false, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// bleep configuration\n\n")

	fmt.Fprintf(&sb, "ui_dir:       %q\n", cfg.UIDir)
	fmt.Fprintf(&sb, "out_dir:      %q\n", cfg.OutDir)
	fmt.Fprintf(&sb, "tsconfig_dir: %q\n", cfg.TsconfigDir)

	sb.WriteString("\nmodules: {\n")
	fmt.Fprintf(&sb, "\tpatterns: %s\n", cueList(cfg.Modules.Patterns))
	sb.WriteString("}\n")

	sb.WriteString("\ntypecheck: {\n")
	fmt.Fprintf(&sb, "\tenabled:        %v\n", cfg.Typecheck.Enabled)
	fmt.Fprintf(&sb, "\tcommand:        %s\n", cueList(cfg.Typecheck.Command))
	fmt.Fprintf(&sb, "\tsuccess_marker: %q\n", cfg.Typecheck.SuccessMarker)
	sb.WriteString("}\n")

	sb.WriteString("\ncss: {\n")
	fmt.Fprintf(&sb, "\tenabled:          %v\n", cfg.CSS.Enabled)
	fmt.Fprintf(&sb, "\tcommand:          %s\n", cueList(cfg.CSS.Command))
	if cfg.CSS.Dir != "" {
		fmt.Fprintf(&sb, "\tdir:              %q\n", cfg.CSS.Dir)
	}
	fmt.Fprintf(&sb, "\tbenign_exit_code: %d\n", cfg.CSS.BenignExitCode)
	fmt.Fprintf(&sb, "\tmax_retries:      %d\n", cfg.CSS.MaxRetries)
	fmt.Fprintf(&sb, "\tretry_delay:      %q\n", cfg.CSS.RetryDelay.String())
	sb.WriteString("}\n")

	if len(cfg.Bundler.Command) > 0 {
		sb.WriteString("\nbundler: {\n")
		fmt.Fprintf(&sb, "\tcommand: %s\n", cueList(cfg.Bundler.Command))
		sb.WriteString("}\n")
	}

	sb.WriteString("\nhooks: {\n")
	fmt.Fprintf(&sb, "\truntime:     %q\n", cfg.Hooks.Runtime)
	fmt.Fprintf(&sb, "\tpre_failure: %q\n", cfg.Hooks.PreFailure)
	if cfg.Hooks.EnvFile != "" {
		fmt.Fprintf(&sb, "\tenv_file:    %q\n", cfg.Hooks.EnvFile)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nwatch: {\n")
	fmt.Fprintf(&sb, "\tmanifests: %v\n", cfg.Watch.Manifests)
	fmt.Fprintf(&sb, "\tdebounce:  %q\n", cfg.Watch.Debounce.String())
	sb.WriteString("}\n")

	if cfg.Metrics.Listen != "" {
		sb.WriteString("\nmetrics: {\n")
		fmt.Fprintf(&sb, "\tlisten: %q\n", cfg.Metrics.Listen)
		sb.WriteString("}\n")
	}

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
