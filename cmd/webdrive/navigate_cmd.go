package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newNavigateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "navigate <url>",
		Short:   "Navigate --session to a URL",
		Args:    cobra.ExactArgs(1),
		Example: `  webdrive navigate --session $SID https://example.com`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			sess, err := attachSession(ctx)
			if err != nil {
				printError(err)
				return
			}
			if err := sess.Get(ctx, args[0]); err != nil {
				printError(err)
			}
		},
	}
}
