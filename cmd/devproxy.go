/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zqadmin/ojadmin/internal/devproxy"
	"github.com/zqadmin/ojadmin/pkg/logger"
)

// devproxyCmd represents the devproxy command
var devproxyCmd = &cobra.Command{
	Use:   "devproxy",
	Short: "Proxies the front-end API prefix to the backend",
	Long: `Serves DEVPROXY_PREFIX (default /basic-api) on DEVPROXY_ADDR and forwards
every request under it to DEVPROXY_TARGET with the prefix stripped. Usage:

	ojadmin devproxy --target http://127.0.0.1:8000
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pcfg := cfg.DevProxy
		if v, _ := cmd.Flags().GetString("addr"); v != "" {
			pcfg.Addr = v
		}
		if v, _ := cmd.Flags().GetString("prefix"); v != "" {
			pcfg.Prefix = v
		}
		if v, _ := cmd.Flags().GetString("target"); v != "" {
			pcfg.Target = v
		}

		log := logger.Named("devproxy")
		proxy, err := devproxy.New(pcfg, log)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              pcfg.Addr,
			Handler:           devproxy.Handler(proxy, pcfg.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		log.Info(ctx, "dev proxy listening",
			logger.String("addr", pcfg.Addr),
			logger.String("prefix", proxy.Prefix()),
			logger.String("target", proxy.Target().String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dev proxy: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devproxyCmd)
	devproxyCmd.Flags().String("addr", "", "listen address (overrides DEVPROXY_ADDR)")
	devproxyCmd.Flags().String("prefix", "", "path prefix to forward (overrides DEVPROXY_PREFIX)")
	devproxyCmd.Flags().String("target", "", "backend base URL (overrides DEVPROXY_TARGET)")
}
