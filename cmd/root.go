package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TascaBarea/ParsearFacturas-sub000/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "facturas",
	Short: "Facturas - supplier invoice parser for a Spanish hospitality business",
	Long: `Facturas reads a folder of supplier invoices (PDF or photographed tickets),
extracts header fields and line items with one strategy per supplier format,
assigns accounting categories and VAT rates, reconciles the lines against the
printed total and writes an Excel workbook plus a run log.

Configuration is read from the environment, an optional .env file and an
optional facturas.yaml in the working directory or $HOME/.config/facturas.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("Facturas CLI executed")

		fmt.Println("Welcome to Facturas!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
