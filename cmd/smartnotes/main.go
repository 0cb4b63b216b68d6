package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "smartnotes",
	Short: "Ask questions about your PDFs and notes",
	Long: `smartnotes is a terminal client for a document question-answering backend.

Upload PDFs and text, then ask questions answered from them by OpenAI or Claude.

Examples:
  smartnotes upload ./paper.pdf ./notes.md
  smartnotes ask --provider anthropic "What does the paper conclude?"
  smartnotes chat --watch ~/Documents/inbox`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if color.NoColor {
			noColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(stubCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
