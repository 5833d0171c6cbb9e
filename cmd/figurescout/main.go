// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the figurescout CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/figurescout/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from the secrets directory at startup.
var loadedSecrets secrets.Secrets

// secretDefault returns fallback when it is set, otherwise the secret for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return loadedSecrets.Get(key, "")
}

// rootCmd is the base command for the figurescout CLI.
var rootCmd = &cobra.Command{
	Use:   "figurescout",
	Short: "Search the literature and enrich results with figure full text",
	Long: `figurescout searches PubMed through the FigureScout backend, stores each
search as a project, and enriches the results with full-text figure data in
small batches. Progress is written to the project store after every batch
and to a local side-cache, so an interrupted run resumes where it stopped.

Typical flow: search a keyword, enrich the project, retry failures, then
export the records.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir := viper.GetString("secrets_dir")
		s, err := secrets.Load(dir, nil)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./figurescout.yaml or ~/.config/figurescout/figurescout.yaml)")
	rootCmd.PersistentFlags().String("api-url", "", "FigureScout backend base URL")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	_ = viper.BindPFlag("api.base_url", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func setDefaults() {
	viper.SetDefault("secrets_dir", secrets.DefaultDir)
	viper.SetDefault("api.base_url", "http://localhost:5000")
	viper.SetDefault("api.timeout", "120s")
	viper.SetDefault("api.user_agent", "figurescout/"+version)
	viper.SetDefault("api.max_retries", 5)
	viper.SetDefault("api.token", "")
	viper.SetDefault("enrich.batch_size", 10)
	viper.SetDefault("enrich.batch_delay", "0s")
	viper.SetDefault("enrich.retry", true)
	viper.SetDefault("cache.backend", "file")
	viper.SetDefault("cache.dir", ".figurescout")
	viper.SetDefault("cache.max_age", "24h")
	viper.SetDefault("cache.redis_addr", "localhost:6379")
	viper.SetDefault("cache.redis_db", 0)
	viper.SetDefault("cache.redis_password", "")
	viper.SetDefault("project_store.backend", "http")
	viper.SetDefault("project_store.path", ".figurescout/projects.db")
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.development", false)
}

func initConfig() {
	// A missing .env is fine; values already in the environment win.
	_ = godotenv.Load()

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("figurescout")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "figurescout"))
		}
	}

	setDefaults()
	viper.SetEnvPrefix("FIGURESCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
