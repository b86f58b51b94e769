package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newEvalCmd() *cobra.Command {
	var async bool
	cmd := &cobra.Command{
		Use:     "eval <script>",
		Short:   "Execute a script in --session and print its JSON-encoded result",
		Args:    cobra.ExactArgs(1),
		Example: `  webdrive eval --session $SID "return document.title"`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			sess, err := attachSession(ctx)
			if err != nil {
				printError(err)
				return
			}
			var result interface{}
			if async {
				result, err = sess.ExecuteAsync(ctx, args[0], nil)
			} else {
				result, err = sess.Execute(ctx, args[0], nil)
			}
			if err != nil {
				printError(err)
				return
			}
			b, _ := json.Marshal(result)
			fmt.Println(string(b))
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "Run via executeAsync instead of execute")
	return cmd
}
