package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var version = "dev"

// Global flags shared by every subcommand.
var (
	serverURL string
	sessionID string
	browser   string
	verbose   bool
)

func main() {
	progName := filepath.Base(os.Args[0])

	rootCmd := &cobra.Command{
		Use:   progName,
		Short: "Drive a remote WebDriver server from the command line",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:4444/wd/hub", "Remote WebDriver server URL")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "Existing session id to attach to (see 'webdrive serve')")
	rootCmd.PersistentFlags().StringVar(&browser, "browser", "", "Desired browserName capability for new-session")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Accepted but unused: no wire requests or responses are logged")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSessionCmd())
	rootCmd.AddCommand(newQuitCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newNavigateCmd())
	rootCmd.AddCommand(newFindCmd())
	rootCmd.AddCommand(newClickCmd())
	rootCmd.AddCommand(newTextCmd())
	rootCmd.AddCommand(newEvalCmd())
	rootCmd.AddCommand(newWaitCmd())
	rootCmd.AddCommand(newScreenshotCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the webdrive client version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
