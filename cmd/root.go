package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the calsec application
var rootCmd = &cobra.Command{
	Use:   "calsec",
	Short: "Conversational Google Calendar assistant for Telegram",
	Long: `calsec runs a Telegram bot that manages a user's Google Calendar.

It connects each chat user to their own Google account through an OAuth
authorization flow and exposes calendar operations (list, create, update,
delete, find) both as bot commands and as MCP tools for AI assistants.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calsec version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
