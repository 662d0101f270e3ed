package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-attend",
	Short: "A blink-triggered face recognition attendance kiosk",
	Long: `Face Attend runs an attendance kiosk on a webcam: it waits for a
blink, verifies the subject is a live person, generates a face signature
and matches it against the enrolled gallery. Every attempt lands in an
append-only attendance log that daily presence is derived from.`,
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
