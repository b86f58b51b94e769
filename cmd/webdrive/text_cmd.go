package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newTextCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "text <elementId>",
		Short:   "Print an element's visible text",
		Args:    cobra.ExactArgs(1),
		Example: `  webdrive text --session $SID e4f3`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			sess, err := attachSession(ctx)
			if err != nil {
				printError(err)
				return
			}
			text, err := sess.AttachElement(args[0]).GetVisibleText(ctx)
			if err != nil {
				printError(err)
				return
			}
			fmt.Println(text)
		},
	}
}
