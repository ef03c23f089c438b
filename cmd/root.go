package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-login",
	Short: "Log in with your face",
	Long: `Face Login enrolls users from a camera frame and recognises them later by
comparing face embeddings against everyone enrolled.

Embeddings come from an external embedding server (EMBEDDING_URL); identities
and the login history are kept in JSON files, PostgreSQL or MariaDB
(STORE_BACKEND).`,
	SilenceUsage: true,
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
