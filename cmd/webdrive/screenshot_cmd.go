package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newScreenshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "screenshot <path>",
		Short:   "Save a PNG screenshot of --session's current page to path",
		Args:    cobra.ExactArgs(1),
		Example: `  webdrive screenshot --session $SID out.png`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			sess, err := attachSession(ctx)
			if err != nil {
				printError(err)
				return
			}
			encoded, err := sess.GetScreenshot(ctx)
			if err != nil {
				printError(err)
				return
			}
			data, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				printError(err)
				return
			}
			if err := os.WriteFile(args[0], data, 0644); err != nil {
				printError(err)
				return
			}
			fmt.Println(args[0])
		},
	}
}
