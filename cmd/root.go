// Package cmd implements the hr-agent command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hr-agent",
	Short: "HR chatbot answering questions about employee records",
	Long: `hr-agent is a retrieval-augmented HR chatbot.

It seeds a PostgreSQL + pgvector store with synthetic employee records and
answers natural-language questions over HTTP by combining similarity search
with a Gemini chat model.

Commands:
  seed    populate the employee store with synthetic records
  serve   start the HTTP API server`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
