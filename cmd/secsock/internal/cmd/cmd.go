// Package cmd wires the secsock command line interface.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"secsock/internal/common/logger"
	"secsock/internal/config"
)

// Cmd holds all flag values shared by the subcommands.
type Cmd struct {
	ConfigPath string
	SessionDB  string
	Debug      bool

	// listen
	ListenAddr  string
	Mode        string
	ForwardTo   string
	ExecCommand string
	IdleTimeout int

	// connect
	ConnectAddr string
	DialTimeout int

	// tls
	CertFile   string
	KeyFile    string
	CAFile     string
	ClientCA   string
	ServerName string
	Insecure   bool
	MinVersion string

	// certgen
	CommonName string
	CertOut    string
	KeyOut     string

	// sessions
	Limit int
}

func NewRootCommand() *cobra.Command {
	c := &Cmd{}

	root := &cobra.Command{
		Use:               "secsock [command]",
		Short:             "Secure socket toolkit",
		PersistentPreRunE: c.preRun,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "TOML configuration file")
	root.PersistentFlags().StringVar(&c.SessionDB, "db", "", "session log database path")
	root.PersistentFlags().BoolVar(&c.Debug, "debug", false, "enable debug logging")

	root.AddCommand(newListenCommand(c))
	root.AddCommand(newConnectCommand(c))
	root.AddCommand(newCertgenCommand(c))
	root.AddCommand(newSessionsCommand(c))

	return root
}

func (c *Cmd) preRun(cmd *cobra.Command, args []string) error {
	if c.Debug {
		logger.SetDebug()
	}
	return nil
}

func (c *Cmd) registerTLSFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.CertFile, "cert", "", "TLS certificate path")
	fs.StringVar(&c.KeyFile, "key", "", "TLS key path")
	fs.StringVar(&c.MinVersion, "min-version", "", "minimum TLS version (1.2 or 1.3)")
}

// loadConfig merges the optional config file with the flags, flags winning.
func (c *Cmd) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, err
	}

	if c.ListenAddr != "" {
		cfg.Listen.Addr = c.ListenAddr
	}
	if c.Mode != "" {
		cfg.Listen.Mode = c.Mode
	}
	if c.ForwardTo != "" {
		cfg.Listen.ForwardTo = c.ForwardTo
	}
	if c.ExecCommand != "" {
		cfg.Listen.Exec = c.ExecCommand
	}
	if c.IdleTimeout > 0 {
		cfg.Listen.IdleTimeoutSec = c.IdleTimeout
	}
	if c.ConnectAddr != "" {
		cfg.Connect.Addr = c.ConnectAddr
	}
	if c.DialTimeout > 0 {
		cfg.Connect.DialTimeoutSec = c.DialTimeout
	}
	if c.CertFile != "" {
		cfg.TLS.CertFile = c.CertFile
	}
	if c.KeyFile != "" {
		cfg.TLS.KeyFile = c.KeyFile
	}
	if c.CAFile != "" {
		cfg.TLS.CAFile = c.CAFile
	}
	if c.ClientCA != "" {
		cfg.TLS.ClientCAFile = c.ClientCA
	}
	if c.ServerName != "" {
		cfg.TLS.ServerName = c.ServerName
	}
	if c.Insecure {
		cfg.TLS.InsecureSkipVerify = true
	}
	if c.MinVersion != "" {
		cfg.TLS.MinVersion = c.MinVersion
	}
	if c.SessionDB != "" {
		cfg.Log.SessionDB = c.SessionDB
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
