package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/splitledger/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Path   string         `json:"path"`
	Config *config.Config `json:"config,omitempty"`
}

// NewValidateConfigCommand creates the validate-config command.
func NewValidateConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-config <file>",
		Short: "Validate a configuration file",
		Long: `Check a YAML configuration file against the config schema without
running anything. Prints the effective configuration, defaults included.

Examples:
  splitledger validate-config ./splitledger.yaml
  splitledger validate-config ./splitledger.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateConfig(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidateConfig(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Validating %s", path)
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		if outErr := formatter.Error(ErrCodeNotFound, fmt.Sprintf("config file not found: %s", path), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "config file not found", err)
	}
	if err != nil {
		if outErr := formatter.Error(ErrCodeInvalidConfig, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "invalid config", err)
	}

	if opts.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Path: path, Config: cfg})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ %s is valid\n", path)
	fmt.Fprintf(w, "  force_double_entry: %d\n", cfg.ForceDoubleEntry)
	fmt.Fprintf(w, "  log_level:          %s\n", cfg.LogLevel)
	if cfg.Journal.Path != "" {
		fmt.Fprintf(w, "  journal.path:       %s\n", cfg.Journal.Path)
	}
	fmt.Fprintf(w, "  metrics.enabled:    %t\n", cfg.Metrics.Enabled)
	return nil
}
