package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ruleengine/pkg/config"
)

func main() {
	_ = godotenv.Load() // optional .env; missing file is not an error

	rootCmd := &cobra.Command{Use: "ruleengine"}
	rootCmd.PersistentFlags().String("env", "", "config overlay name (RULEENGINE_ENV)")
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(versionCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) config.EngineConfig {
	env, _ := cmd.Flags().GetString("env")
	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, using defaults\n", err)
		d := config.Default()
		return d
	}
	return *cfg
}
