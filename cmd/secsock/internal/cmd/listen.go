package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"secsock/internal/common/logger"
	"secsock/internal/common/pprint"
	"secsock/internal/securesock"
	"secsock/internal/server"
	"secsock/internal/sessionlog"
)

func newListenCommand(c *Cmd) *cobra.Command {
	listen := &cobra.Command{
		Use:     "listen [flags]",
		Aliases: []string{"l"},
		Short:   "Accept secure connections",
		Example: "  secsock listen -l 0.0.0.0:8443 --mode forward --to 127.0.0.1:80",
		RunE:    c.runListen,
	}
	listen.Flags().StringVarP(&c.ListenAddr, "addr", "l", "", "listen address (host:port)")
	listen.Flags().StringVar(&c.Mode, "mode", "", "session handler: echo, forward or exec")
	listen.Flags().StringVar(&c.ForwardTo, "to", "", "upstream address for forward mode")
	listen.Flags().StringVar(&c.ExecCommand, "exec", "", "command line for exec mode")
	listen.Flags().IntVar(&c.IdleTimeout, "idle-timeout", 0, "idle timeout in seconds (0 to disable)")
	listen.Flags().StringVar(&c.ClientCA, "client-ca", "", "CA bundle for required client certificates")
	c.registerTLSFlags(listen.Flags())

	return listen
}

func (c *Cmd) runListen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lg := logger.FromContext(ctx)

	fmt.Print(pprint.GetBanner())

	cfg, err := c.loadConfig()
	if err != nil {
		lg.Errorf("Failed to load configuration: %v", err)
		return err
	}
	if cfg.Log.Debug {
		logger.SetDebug()
	}

	minVersion, err := cfg.TLS.MinVersionID()
	if err != nil {
		return err
	}
	secctx, err := securesock.NewServerContext(lg, &securesock.ServerConfig{
		CertFile:     cfg.TLS.CertFile,
		KeyFile:      cfg.TLS.KeyFile,
		ClientCAFile: cfg.TLS.ClientCAFile,
		MinVersion:   minVersion,
	})
	if err != nil {
		lg.Errorf("Failed to initialize TLS context: %v", err)
		return err
	}

	var store *sessionlog.Store
	if cfg.Log.SessionDB != "" {
		store, err = sessionlog.Open(ctx, cfg.Log.SessionDB)
		if err != nil {
			lg.Errorf("Failed to open session log: %v", err)
			return err
		}
		defer store.Close()
	}

	srv, err := server.NewListener(ctx, secctx, store, &server.Config{
		Addr:        cfg.Listen.Addr,
		Mode:        cfg.Listen.Mode,
		ForwardTo:   cfg.Listen.ForwardTo,
		Exec:        cfg.Listen.Exec,
		IdleTimeout: time.Duration(cfg.Listen.IdleTimeoutSec) * time.Second,
	})
	if err != nil {
		lg.Errorf("Failed to initialize listener: %v", err)
		return err
	}

	return srv.Start(ctx)
}
