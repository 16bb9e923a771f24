package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "eventlens",
	Short: "Face search over event photo collections",
	Long: `EventLens indexes the faces in event photo collections and lets
attendees find photos of themselves by uploading a single selfie.
Photographers upload batches per event; detection and embedding run
against an external inference sidecar.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
