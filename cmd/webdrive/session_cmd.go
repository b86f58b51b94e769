package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	webdriver "github.com/vibium/webdrive"
)

func newSessionCmd() *cobra.Command {
	var noDetect bool
	cmd := &cobra.Command{
		Use:     "new-session",
		Short:   "Create a session on --server and print its id",
		Example: `  webdrive new-session --browser chrome`,
		Run: func(cmd *cobra.Command, args []string) {
			srv, err := newClient()
			if err != nil {
				printError(err)
				return
			}
			desired := webdriver.Capabilities{}
			if browser != "" {
				desired[webdriver.CapBrowserName] = browser
			}
			sess, err := srv.CreateSession(context.Background(), desired, nil, webdriver.CreateSessionOptions{
				FixCapabilities: true,
				Detect:          !noDetect,
			})
			if err != nil {
				printError(err)
				return
			}
			fmt.Println(sess.ID())
		},
	}
	cmd.Flags().BoolVar(&noDetect, "no-detect", false, "Skip the capability probe phase (known-defects table still applies)")
	return cmd
}

func newQuitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quit",
		Short: "Tear down --session",
		Run: func(cmd *cobra.Command, args []string) {
			sess, err := attachSession(context.Background())
			if err != nil {
				printError(err)
				return
			}
			if err := sess.Quit(context.Background()); err != nil {
				printError(err)
			}
		},
	}
}
