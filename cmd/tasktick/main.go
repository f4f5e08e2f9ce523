package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dnguyen/tasktick/internal/config"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "tasktick",
		Short:   "tasktick - local-first task and time tracker",
		Version: Version,
	}

	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", config.DefaultConfigPath(), "config file path")

	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(doneCmd())
	rootCmd.AddCommand(timerCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(loginCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
