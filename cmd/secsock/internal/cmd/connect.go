package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"secsock/internal/client"
	"secsock/internal/common/logger"
	"secsock/internal/securesock"
	"secsock/internal/sessionlog"
)

func newConnectCommand(c *Cmd) *cobra.Command {
	connect := &cobra.Command{
		Use:     "connect [flags] <host:port>",
		Aliases: []string{"c"},
		Short:   "Open a secure connection and pipe it to stdio",
		Example: "  secsock connect --ca ca.crt example.com:8443",
		Args:    cobra.MaximumNArgs(1),
		RunE:    c.runConnect,
	}
	connect.Flags().StringVar(&c.CAFile, "ca", "", "CA bundle to verify the server against")
	connect.Flags().StringVar(&c.ServerName, "server-name", "", "expected server name (defaults to the dialed host)")
	connect.Flags().BoolVarP(&c.Insecure, "insecure", "k", false, "skip server certificate verification")
	connect.Flags().IntVar(&c.DialTimeout, "timeout", 0, "dial timeout in seconds")
	c.registerTLSFlags(connect.Flags())

	return connect
}

func (c *Cmd) runConnect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lg := logger.FromContext(ctx)

	if len(args) == 1 {
		c.ConnectAddr = args[0]
	}

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
	secctx, err := securesock.NewClientContext(lg, &securesock.ClientConfig{
		ServerName:         cfg.TLS.ServerName,
		RootCAFile:         cfg.TLS.CAFile,
		CertFile:           cfg.TLS.CertFile,
		KeyFile:            cfg.TLS.KeyFile,
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		MinVersion:         minVersion,
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

	cl, err := client.NewClient(ctx, secctx, store, &client.Config{
		Addr:        cfg.Connect.Addr,
		DialTimeout: time.Duration(cfg.Connect.DialTimeoutSec) * time.Second,
	})
	if err != nil {
		lg.Errorf("Failed to initialize client: %v", err)
		return err
	}

	return cl.Run(ctx)
}
