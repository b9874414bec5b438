/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zqadmin/ojadmin/internal/mq"
	"github.com/zqadmin/ojadmin/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// eventsCmd groups domain event commands.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect problem admin events on the configured broker",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch [CHANNEL...]",
	Short: "Print events as they are published",
	Long: `Subscribes to the given channels (default: all problem admin channels)
on the broker selected by MQ_BACKEND and prints every message. Usage:

	ojadmin events watch problem.created
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		channels := args
		if len(channels) == 0 {
			channels = []string{mq.ChannelProblemCreated, mq.ChannelTestCaseUploaded}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer broker.Close()
		if !broker.Enabled() {
			return errors.New("MQ_BACKEND is not set")
		}

		return watchEvents(ctx, broker, channels, cmd.OutOrStdout(), logger.Named("events"))
	},
}

type subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// watchEvents prints messages from every channel until ctx is done. The
// first subscriber failure stops the others and is returned; a stop caused
// by ctx itself is not an error.
func watchEvents(ctx context.Context, broker subscriber, channels []string, out io.Writer, log logger.Logger) error {
	g, groupCtx := errgroup.WithContext(ctx)
	for _, channel := range channels {
		g.Go(func() error {
			return broker.Subscribe(groupCtx, channel, func(ctx context.Context, msg mq.Message) error {
				log.Debug(ctx, "event received", logger.String("channel", channel), logger.String("id", msg.ID))
				_, err := fmt.Fprintf(out, "%s %s %s\n", channel, msg.ID, msg.Data)
				return err
			})
		})
	}
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch events: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsWatchCmd)
}
