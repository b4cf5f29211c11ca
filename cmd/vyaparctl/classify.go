package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"vyapar-go/internal/intent"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [message]",
	Short: "Classify a chat message as invoice, document or chat intent",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result := intent.Detect(strings.Join(args, " "))
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
