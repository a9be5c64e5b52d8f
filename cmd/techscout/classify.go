// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meshintel/techscout/internal/pdflink"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [urls...]",
	Short: "Classify URLs as direct PDF links or landing pages",
	Long: `Classify applies the PDF link heuristics to each URL and prints the
verdict: direct (fetchable binary), landing (an abstract or DOI page that will
not serve a PDF), or unknown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("provide one or more URLs")
		}
		for _, u := range args {
			fmt.Printf("%s\t%s\n", pdflink.Classify(u), u)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
