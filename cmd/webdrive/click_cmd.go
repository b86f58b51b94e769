package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newClickCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "click <elementId>",
		Short:   "Click an element previously returned by find",
		Args:    cobra.ExactArgs(1),
		Example: `  webdrive click --session $SID e4f3`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			sess, err := attachSession(ctx)
			if err != nil {
				printError(err)
				return
			}
			if err := sess.AttachElement(args[0]).Click(ctx); err != nil {
				printError(err)
			}
		},
	}
}
