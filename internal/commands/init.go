package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/denar-dev/denar/internal/config"
)

func newInitCommand() *cobra.Command {
	var operators []string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new denar ledger directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(absDir, operators)
		},
	}

	cmd.Flags().StringSliceVar(&operators, "operator", nil, "operator ID allowed to run privileged commands (repeatable)")

	return cmd
}

func runInit(dir string, operators []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	path := filepath.Join(dir, "denar.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(dir, "denar.db")
	cfg.Bank.Operators = operators
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Initialized denar ledger at %s\n", dir)
	fmt.Println("Set DENAR_FLOAT_PASSWORD and DENAR_POOL_PASSWORD before serving.")
	return nil
}
