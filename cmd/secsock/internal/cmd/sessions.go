package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"secsock/internal/common/logger"
	"secsock/internal/common/pprint"
	"secsock/internal/sessionlog"
)

func newSessionsCommand(c *Cmd) *cobra.Command {
	sessions := &cobra.Command{
		Use:     "sessions [flags]",
		Aliases: []string{"s"},
		Short:   "List recorded sessions",
		Example: "  secsock sessions --db sessions.db -n 20",
		RunE:    c.runSessions,
	}
	sessions.Flags().IntVarP(&c.Limit, "limit", "n", 0, "show at most N sessions (0 for all)")

	return sessions
}

func (c *Cmd) runSessions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lg := logger.FromContext(ctx)

	cfg, err := c.loadConfig()
	if err != nil {
		lg.Errorf("Failed to load configuration: %v", err)
		return err
	}
	if cfg.Log.SessionDB == "" {
		fmt.Println(pprint.Warn("No session log configured, use --db or the config file"))
		return nil
	}

	store, err := sessionlog.Open(ctx, cfg.Log.SessionDB)
	if err != nil {
		lg.Errorf("Failed to open session log: %v", err)
		return err
	}
	defer store.Close()

	sessions, err := store.List(ctx, c.Limit)
	if err != nil {
		lg.Errorf("Failed to list sessions: %v", err)
		return err
	}
	if len(sessions) == 0 {
		fmt.Println(pprint.Info("No sessions recorded"))
		return nil
	}

	rows := make([][]string, 0, len(sessions))
	for _, sess := range sessions {
		rows = append(rows, []string{
			sess.ID,
			sess.Role,
			sess.RemoteAddr,
			sess.TLSVersion,
			sess.CipherSuite,
			strconv.FormatInt(sess.BytesIn, 10),
			strconv.FormatInt(sess.BytesOut, 10),
			sess.EOFKind,
			sess.StartedAt.Local().Format("02/01/2006 15:04:05"),
		})
	}
	fmt.Println(pprint.Table(
		[]string{"ID", "ROLE", "REMOTE", "VERSION", "CIPHER", "IN", "OUT", "EOF", "STARTED"},
		rows,
	))
	return nil
}
