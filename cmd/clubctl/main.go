package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clubhub/internal/app"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "clubctl",
	Short:         "Clubhub administration tool",
	Long:          `Operator commands for the club platform: schema migration, first-run seeding, roster imports and notification delivery.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(notificationsCmd)
}

// withApp builds the application for one command and closes it afterwards.
func withApp(ctx context.Context, migrate bool, fn func(a *app.App) error) error {
	a, err := app.New(ctx, migrate)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
