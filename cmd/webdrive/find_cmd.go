package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibium/webdrive/internal/locator"
)

func newFindCmd() *cobra.Command {
	var using string
	cmd := &cobra.Command{
		Use:     "find <value>",
		Short:   "Find the first element matching a locator and print its id",
		Args:    cobra.ExactArgs(1),
		Example: `  webdrive find --session $SID --using "css selector" ".login"`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			sess, err := attachSession(ctx)
			if err != nil {
				printError(err)
				return
			}
			el, err := sess.Find(ctx, using, args[0])
			if err != nil {
				printError(err)
				return
			}
			fmt.Println(el.ID())
		},
	}
	cmd.Flags().StringVar(&using, "using", locator.CSSSelector, "Locator strategy: css selector, xpath, id, name, class name, tag name, link text, partial link text")
	return cmd
}
