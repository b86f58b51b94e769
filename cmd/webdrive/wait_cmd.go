package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vibium/webdrive/internal/locator"
)

func newWaitCmd() *cobra.Command {
	var using string
	var forGone bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "wait <value>",
		Short: "Wait for an element to become displayed, or (with --gone) to disappear",
		Args:  cobra.ExactArgs(1),
		Example: `  webdrive wait --session $SID --using "css selector" ".spinner" --gone
  webdrive wait --session $SID --using "css selector" ".result"`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			sess, err := attachSession(ctx)
			if err != nil {
				printError(err)
				return
			}
			waitCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			if forGone {
				if err := sess.WaitForDeleted(waitCtx, using, args[0]); err != nil {
					printError(err)
				}
				return
			}
			el, err := sess.FindDisplayed(waitCtx, using, args[0])
			if err != nil {
				printError(err)
				return
			}
			fmt.Println(el.ID())
		},
	}
	cmd.Flags().StringVar(&using, "using", locator.CSSSelector, "Locator strategy")
	cmd.Flags().BoolVar(&forGone, "gone", false, "Wait for the element to be removed instead of displayed")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait before giving up")
	return cmd
}
