// Package cmd implements the command-line interface for calsec.
//
// This package provides the following commands:
//   - serve: Start the Telegram bot, the OAuth callback server, and the MCP tool server
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
