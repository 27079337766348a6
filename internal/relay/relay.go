// Package relay pipes two byte streams into each other until both directions
// have drained.
package relay

import (
	"context"
	"io"
	"net"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"
)

type closeWriter interface {
	CloseWrite() error
}

// Join copies left-to-right and right-to-left concurrently and reports the
// bytes moved in each direction. When one direction drains, the write side of
// the other end is closed so the peer observes EOF. Both ends are closed
// before Join returns; cancelling ctx tears the pipe down early.
func Join(ctx context.Context, left, right io.ReadWriteCloser) (toRight, toLeft int64, err error) {
	g := new(errgroup.Group)

	g.Go(func() error {
		n, err := io.Copy(right, left)
		toRight = n
		closeWrite(right)
		return filterCopyErr(err)
	})
	g.Go(func() error {
		n, err := io.Copy(left, right)
		toLeft = n
		closeWrite(left)
		return filterCopyErr(err)
	})

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			left.Close()
			right.Close()
		case <-done:
		}
	}()

	err = g.Wait()
	close(done)
	left.Close()
	right.Close()

	if err == nil && ctx.Err() != nil {
		return toRight, toLeft, ctx.Err()
	}
	if err != nil {
		return toRight, toLeft, errors.Wrap(err, "relay")
	}
	return toRight, toLeft, nil
}

// closeWrite half-closes ends that support it so the peer sees EOF while the
// opposite direction keeps flowing. Ends without half-close are closed fully,
// otherwise the opposite copier could block forever.
func closeWrite(w io.Writer) {
	if cw, ok := w.(closeWriter); ok {
		cw.CloseWrite()
		return
	}
	if c, ok := w.(io.Closer); ok {
		c.Close()
	}
}

func filterCopyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
