package sessionlog

import (
	"database/sql"
	"database/sql/driver"

	"github.com/go-faster/errors"
	"modernc.org/sqlite"
)

type sqliteDriver struct {
	*sqlite.Driver
}

// Open create connection to database
func (d sqliteDriver) Open(name string) (driver.Conn, error) {
	conn, err := d.Driver.Open(name)
	if err != nil {
		return conn, err
	}
	c := conn.(interface {
		Exec(stmt string, args []driver.Value) (driver.Result, error)
	})
	// enable PRAGMAs
	if _, err = c.Exec("PRAGMA journal_mode = WAL;", nil); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}
	if _, err = c.Exec("PRAGMA synchronous = NORMAL;", nil); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to enable normal synchronous")
	}
	if _, err = c.Exec("PRAGMA busy_timeout = 5000;", nil); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to set busy timeout")
	}
	return conn, nil
}

func init() {
	sql.Register("secsock_sqlite", sqliteDriver{Driver: &sqlite.Driver{}})
}
