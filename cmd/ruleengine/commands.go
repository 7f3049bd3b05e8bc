package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ruleengine/internal/engine"
	"ruleengine/internal/rule"
	"ruleengine/internal/store"
	"ruleengine/internal/value"
	"ruleengine/pkg/config"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "load rules and facts, process a batch, print every firing result",
		RunE: func(cmd *cobra.Command, args []string) error {
			rulesPath, _ := cmd.Flags().GetString("rules")
			factsPath, _ := cmd.Flags().GetString("facts")
			if rulesPath == "" || factsPath == "" {
				return fmt.Errorf("--rules and --facts are required")
			}

			cfg := loadConfig(cmd)

			rules, err := loadRules(rulesPath)
			if err != nil {
				return fmt.Errorf("load rules: %w", err)
			}
			facts, err := loadFacts(factsPath)
			if err != nil {
				return fmt.Errorf("load facts: %w", err)
			}

			eng := engine.NewWithConfig(cfg)
			for _, r := range rules {
				if err := eng.AddRule(r); err != nil {
					return fmt.Errorf("add rule %d: %w", r.ID, err)
				}
			}

			results, err := eng.ProcessFacts(facts)
			if err != nil {
				return fmt.Errorf("process facts: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
	cmd.Flags().String("rules", "", "path to a JSON array of rules")
	cmd.Flags().String("facts", "", "path to a JSON array of facts (field->value objects)")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "print the loaded engine configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the configuration package version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.Version)
		},
	}
}

func loadRules(path string) ([]rule.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules []rule.Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// loadFacts reads a JSON array of field->value objects and wraps each as a
// store.Fact. Ids and timestamps are assigned by the store on insertion.
func loadFacts(path string) ([]store.Fact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []map[string]value.Value
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	facts := make([]store.Fact, len(rows))
	for i, row := range rows {
		facts[i] = store.Fact{Data: row}
	}
	return facts, nil
}
