package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeweaver/core/internal/app"
	"github.com/codeweaver/core/internal/coreconfig"
	"github.com/codeweaver/core/internal/query"
)

var (
	tokenLimitFlag int
	intentFlag     string
)

var findCmd = &cobra.Command{
	Use:   "find <query>",
	Short: "Run find_code against the indexed codebase",
	Args:  cobra.ExactArgs(1),
	RunE:  runFind,
}

func init() {
	rootCmd.AddCommand(findCmd)
	findCmd.Flags().IntVar(&tokenLimitFlag, "token-limit", 0, "response token budget (default 30000)")
	findCmd.Flags().StringVar(&intentFlag, "intent", "", "optional intent hint")
}

func runFind(cmd *cobra.Command, args []string) error {
	rootDir, err := resolveRootDir()
	if err != nil {
		return fmt.Errorf("resolve root directory: %w", err)
	}

	settings, err := coreconfig.LoadFromDir(rootDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	a, err := app.New(settings)
	if err != nil {
		return fmt.Errorf("construct pipeline: %w", err)
	}

	req := query.Request{
		Query:      args[0],
		Intent:     intentFlag,
		TokenLimit: tokenLimitFlag,
	}
	resp := a.Query.FindCode(context.Background(), req)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
