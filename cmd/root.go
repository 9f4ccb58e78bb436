/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "backoffice",
	Short: "Storefront back office",
	Long: `Storefront back office: catalog, accounts and order management.

	backoffice server          serve the HTML pages and JSON API
	backoffice migrate up      apply database migrations
	backoffice worker          consume order events and send notifications
	backoffice user add ...    create an account from the command line
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
