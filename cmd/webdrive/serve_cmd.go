package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vibium/webdrive/internal/sessionregistry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Hold --session open and let other webdrive invocations attach to it by id",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := attachSession(ctx)
			if err != nil {
				printError(err)
				return
			}

			socketPath, err := sessionregistry.SocketPath(sess.ID())
			if err != nil {
				printError(err)
				return
			}
			sessionregistry.CleanStale(sess.ID())
			os.Remove(socketPath)

			reg, err := sessionregistry.Serve(ctx, socketPath, sess)
			if err != nil {
				printError(err)
				return
			}
			defer reg.Close()

			if err := sessionregistry.WritePID(sess.ID()); err != nil {
				printError(err)
				return
			}
			defer sessionregistry.RemovePID(sess.ID())

			fmt.Printf("serving session %s on %s\n", sess.ID(), socketPath)
			<-ctx.Done()
		},
	}
}
