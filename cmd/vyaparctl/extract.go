package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"vyapar-go/pkg/pdftext"
)

var (
	extractBackend string
	extractPreview bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [file.pdf]",
	Short: "Extract plain text from a PDF with the configured extractor",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractBackend, "extractor", "", "Override document.extractor (local | tika)")
	extractCmd.Flags().BoolVar(&extractPreview, "preview", false, "Print only the preview shown in the UI")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backend := cfg.Document.Extractor
	if extractBackend != "" {
		backend = extractBackend
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	extractor := pdftext.New(backend, cfg.Tika.ServerURL, cfg.Document.MaxChars)
	text, err := extractor.ExtractText(cmd.Context(), f, filepath.Base(args[0]))
	if err != nil {
		return err
	}
	if extractPreview {
		text = pdftext.Preview(text, cfg.Document.PreviewChars)
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
