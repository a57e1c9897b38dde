package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tablestakes/brigade/internal/auditlog"
	"github.com/tablestakes/brigade/internal/committee"
	"github.com/tablestakes/brigade/internal/config"
	"github.com/tablestakes/brigade/internal/critic"
	"github.com/tablestakes/brigade/internal/plan"
	"github.com/tablestakes/brigade/internal/transcript"
)

const configFileName = "brigade.yaml"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the committee against an inputs file",
	Long: `Run the purchasing committee against a JSON inputs file (demand forecast,
inventory snapshot, existing purchase orders, QC gates, prep schedule, order
history). The decision and the full audit trail are printed; the trail is
also appended under <workspace>/runs/.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("inputs", "i", "", "Path to committee inputs JSON file (required)")
	runCmd.Flags().String("mode", "", "Override the configured committee mode (single, dual, triple)")
	_ = runCmd.MarkFlagRequired("inputs")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	outWriter := cmd.OutOrStdout()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg, cfgPath, err := loadOrCreateConfig(configPath, logger)
	if err != nil {
		return err
	}

	logger.Info("loaded configuration", "path", cfgPath)

	if err := cfg.Validate(); err != nil {
		return err
	}

	modeOverride, err := cmd.Flags().GetString("mode")
	if err != nil {
		return err
	}

	cc := cfg.Context(modeOverride)
	switch cc.Mode {
	case plan.ModeSingle, plan.ModeDual, plan.ModeTriple:
	default:
		return fmt.Errorf("invalid mode %q: must be single, dual, or triple", cc.Mode)
	}

	inputsPath, err := cmd.Flags().GetString("inputs")
	if err != nil {
		return err
	}

	inputs, err := plan.LoadInputs(inputsPath)
	if err != nil {
		return err
	}

	logger.Info("loaded inputs",
		"path", inputsPath,
		"forecast_items", len(inputs.Forecast),
		"purchase_orders", len(inputs.PurchaseOrders))

	workspaceRoot := determineWorkspaceRoot(cfg, cfgPath)

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	engine := committee.NewEngine(
		critic.NewHeuristicPlanner(),
		critic.NewRiskAgent(),
		critic.NewHistoryAgent(),
		logger,
	)

	result, err := engine.Run(ctx, inputs, cc)
	if err != nil {
		return fmt.Errorf("committee run failed: %w", err)
	}

	trailPath := filepath.Join(workspaceRoot, "runs", result.RunID+".ndjson")
	trail, err := auditlog.New(trailPath, logger)
	if err != nil {
		return fmt.Errorf("failed to create audit trail: %w", err)
	}
	defer trail.Close()

	if err := trail.WriteResult(result); err != nil {
		return fmt.Errorf("failed to write audit trail: %w", err)
	}

	formatter := transcript.NewFormatter()
	for i := range result.Decision.Critiques {
		fmt.Fprintln(outWriter, formatter.FormatCritique(&result.Decision.Critiques[i]))
	}
	for i := range result.Audit {
		fmt.Fprintln(outWriter, formatter.FormatEntry(i, &result.Audit[i]))
	}
	fmt.Fprintln(outWriter, formatter.FormatDecision(&result.Decision))
	fmt.Fprintf(outWriter, "Audit trail written to %s\n", trailPath)

	return nil
}

// loadOrCreateConfig finds an existing config or creates a new one: explicit
// path first, then a walk up the directory tree, then a default in the CWD.
func loadOrCreateConfig(configPath string, logger *slog.Logger) (*config.Config, string, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		return cfg, configPath, nil
	}

	foundPath, err := findConfigInTree()
	if err != nil {
		return nil, "", err
	}

	if foundPath != "" {
		logger.Info("found existing config", "path", foundPath)
		cfg, err := config.LoadFromFile(foundPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, foundPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current directory: %w", err)
	}

	defaultPath := filepath.Join(cwd, configFileName)
	logger.Info("no config found, creating default", "path", defaultPath)

	cfg := config.GenerateDefault()
	if err := cfg.SaveToFile(defaultPath); err != nil {
		return nil, "", fmt.Errorf("failed to save default config: %w", err)
	}

	return cfg, defaultPath, nil
}

// findConfigInTree searches up the directory tree for brigade.yaml
func findConfigInTree() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	for {
		configPath := filepath.Join(dir, configFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// determineWorkspaceRoot resolves the workspace root relative to the config file
func determineWorkspaceRoot(cfg *config.Config, configPath string) string {
	configDir := filepath.Dir(configPath)
	if cfg.WorkspaceRoot == "" || cfg.WorkspaceRoot == "." {
		return configDir
	}
	return filepath.Join(configDir, cfg.WorkspaceRoot)
}
