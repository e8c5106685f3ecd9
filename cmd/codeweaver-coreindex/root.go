package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd mirrors the teacher's internal/cli/root.go shape: cobra +
// viper, persistent --root and --verbose flags bound into viper, and
// cobra.OnInitialize enabling environment-variable lookup before any
// subcommand runs. There is no --config flag and no config-file discovery.
var rootCmd = &cobra.Command{
	Use:   "codeweaver-coreindex",
	Short: "Index and search a codebase with CodeWeaver's retrieval core",
	Long: `codeweaver-coreindex demonstrates the discovery -> chunk -> dedup ->
embed -> vector-store -> query pipeline described by the CodeWeaver
indexing and retrieval core.`,
}

var (
	rootDirFlag string
	verboseFlag bool
)

// Execute runs the root command; called once from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().StringVar(&rootDirFlag, "root", "", "project root directory (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "verbose output")

	viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initViper() {
	viper.AutomaticEnv()
}

func resolveRootDir() (string, error) {
	if rootDirFlag != "" {
		return rootDirFlag, nil
	}
	return os.Getwd()
}
