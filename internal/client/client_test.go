package client

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"secsock/internal/securesock"
	"secsock/internal/server"
	"secsock/internal/testutil/tlstest"
)

const testTimeout = 5 * time.Second

type testEnv struct {
	clientCtx *securesock.Context
	serverCtx *securesock.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	ca := tlstest.NewAuthority(t, dir, "client test ca")
	certPath, keyPath := ca.IssueServerCert(t, dir, "127.0.0.1", nil, []net.IP{net.ParseIP("127.0.0.1")})

	lg := zap.NewNop().Sugar()
	serverCtx, err := securesock.NewServerContext(lg, &securesock.ServerConfig{CertFile: certPath, KeyFile: keyPath})
	if err != nil {
		t.Fatalf("server context: %v", err)
	}
	clientCtx, err := securesock.NewClientContext(lg, &securesock.ClientConfig{RootCAFile: ca.CAFile()})
	if err != nil {
		t.Fatalf("client context: %v", err)
	}
	return &testEnv{clientCtx: clientCtx, serverCtx: serverCtx}
}

// startEchoListener serves echo sessions until the returned cancel is called.
func startEchoListener(t *testing.T, env *testEnv) (string, context.CancelFunc) {
	t.Helper()

	l, err := server.NewListener(context.Background(), env.serverCtx, nil, &server.Config{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go l.Start(ctx)

	deadline := time.Now().Add(testTimeout)
	for l.Addr() == nil {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("listener did not bind")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return l.Addr().String(), cancel
}

func TestDial(t *testing.T) {
	env := newTestEnv(t)
	addr, cancel := startEchoListener(t, env)
	defer cancel()

	cl, err := NewClient(context.Background(), env.clientCtx, nil, &Config{Addr: addr})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancelDial := context.WithTimeout(context.Background(), testTimeout)
	defer cancelDial()

	sock, err := cl.Dial(ctx)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer sock.Close()

	if !sock.HandshakeDone() {
		t.Error("handshake not done after Dial")
	}
	if sock.PeerFingerprint() == "" {
		t.Error("no peer fingerprint after Dial")
	}
}

func TestRunPipesStdio(t *testing.T) {
	env := newTestEnv(t)
	addr, cancel := startEchoListener(t, env)
	defer cancel()

	input := []byte("over and out")
	var output bytes.Buffer

	cl, err := NewClient(context.Background(), env.clientCtx, nil, &Config{
		Addr:   addr,
		Stdin:  bytes.NewReader(input),
		Stdout: &output,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancelRun := context.WithTimeout(context.Background(), testTimeout)
	defer cancelRun()

	if err := cl.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !bytes.Equal(output.Bytes(), input) {
		t.Fatalf("piped %q, want %q", output.Bytes(), input)
	}
}

func TestNewClientValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := NewClient(ctx, env.serverCtx, nil, &Config{Addr: "127.0.0.1:8443"}); err == nil {
		t.Error("NewClient accepted a server context")
	}
	if _, err := NewClient(ctx, env.clientCtx, nil, &Config{Addr: "not-an-addr"}); err == nil {
		t.Error("NewClient accepted a bad address")
	}
}
