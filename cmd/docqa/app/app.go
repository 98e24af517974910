// Package app provides the QA server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/imezh/RAG-agent/cmd/docqa/app/options"
	"github.com/imezh/RAG-agent/internal/docqa"
)

const commandDesc = `Document QA service

A RAG (Retrieval-Augmented Generation) question answering service over a
local document collection. Documents are parsed, chunked, embedded and
stored in a SQLite vector store; questions are answered by an LLM from
the most relevant chunks.

Supported providers: YandexGPT, GigaChat.`

// NewApp creates and returns the root command with all subcommands.
func NewApp() *cobra.Command {
	opts := options.NewServerOptions()

	rootCmd := &cobra.Command{
		Use:           docqa.Name,
		Short:         "Document QA service",
		Long:          commandDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")

	fs := pflag.NewFlagSet(docqa.Name, pflag.ContinueOnError)
	opts.AddFlags(fs)
	rootCmd.PersistentFlags().AddFlagSet(fs)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := loadConfig(cmd, opts); err != nil {
			return err
		}
		return opts.Log.Init(docqa.Name)
	}

	rootCmd.AddCommand(
		newServeCommand(opts),
		newIndexCommand(opts),
		newQueryCommand(opts),
	)

	return rootCmd
}

// Run executes the application.
func Run() {
	if err := NewApp().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and flags.
// Precedence: explicit flags > environment > config file > defaults.
func loadConfig(cmd *cobra.Command, opts *options.ServerOptions) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(docqa.Name)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(filepath.Join(os.Getenv("HOME"), "."+docqa.Name))
		viper.AddConfigPath("/etc/" + docqa.Name)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	expandEnvVars()

	viper.SetEnvPrefix(strings.ToUpper(docqa.Name))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Preserve flag precedence over config values.
	changedFlags := make(map[string]string)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changedFlags[f.Name] = f.Value.String()
		}
	})

	if err := viper.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for name, val := range changedFlags {
		if err := cmd.Flags().Set(name, val); err != nil {
			return fmt.Errorf("failed to re-apply flag %s: %w", name, err)
		}
	}

	return nil
}

// expandEnvVars expands ${VAR} and $VAR style environment variables in
// config values, so API keys can stay out of the config file.
func expandEnvVars() {
	envPattern := regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

	for _, key := range viper.AllKeys() {
		val := viper.Get(key)
		strVal, ok := val.(string)
		if !ok {
			continue
		}
		expanded := envPattern.ReplaceAllStringFunc(strVal, func(match string) string {
			var varName string
			if strings.HasPrefix(match, "${") {
				varName = match[2 : len(match)-1]
			} else {
				varName = match[1:]
			}
			if envVal := os.Getenv(varName); envVal != "" {
				return envVal
			}
			return match
		})
		if expanded != strVal {
			viper.Set(key, expanded)
		}
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or
// SIGTERM. A second signal forces immediate exit.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
