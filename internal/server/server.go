// Package server accepts client connections for the wake-word service and
// runs one session per connection.
//
// The listening transport is selected by URI scheme:
//
//	stdio://          serve a single session over stdin/stdout
//	tcp://host:port   listen on a TCP socket
//	unix://path       listen on a Unix domain socket
//	ws://host:port    accept WebSocket connections carrying the same framing
//
// Every connection carries independent session state; sessions only share
// the detector cache.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/kestrelaudio/wakeserve/internal/wyoming"
)

// HandlerFunc runs one session over an established connection. It returns
// when the client disconnects or the session hits a terminal error.
type HandlerFunc func(ctx context.Context, conn *wyoming.Conn) error

// Server accepts connections per its URI and dispatches sessions.
type Server struct {
	uri    string
	handle HandlerFunc
}

// New creates a server for the given connection URI.
func New(uri string, handle HandlerFunc) *Server {
	return &Server{uri: uri, handle: handle}
}

// Run listens and serves until ctx is cancelled. For stdio it serves exactly
// one session and returns when the stream ends.
func (s *Server) Run(ctx context.Context) error {
	u, err := url.Parse(s.uri)
	if err != nil {
		return fmt.Errorf("server: parse uri %q: %w", s.uri, err)
	}

	switch u.Scheme {
	case "stdio":
		return s.runStdio(ctx)
	case "tcp":
		return s.runListener(ctx, "tcp", u.Host)
	case "unix":
		return s.runListener(ctx, "unix", unixPath(u))
	case "ws":
		return s.runWebSocket(ctx, u.Host)
	default:
		return fmt.Errorf("server: unsupported uri scheme %q", u.Scheme)
	}
}

// stdioStream pairs stdin and stdout into one duplex stream.
type stdioStream struct {
	io.Reader
	io.Writer
}

func (s *Server) runStdio(ctx context.Context) error {
	slog.Info("serving on stdio")
	conn := wyoming.NewConn(stdioStream{Reader: os.Stdin, Writer: os.Stdout})

	// A read on stdin cannot be interrupted; on cancellation the session
	// goroutine is abandoned and exits with the process.
	done := make(chan error, 1)
	go func() { done <- s.handle(ctx, conn) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		if err != nil {
			return fmt.Errorf("server: stdio session: %w", err)
		}
		return nil
	}
}

func (s *Server) runListener(ctx context.Context, network, addr string) error {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return fmt.Errorf("server: listen %s %q: %w", network, addr, err)
	}
	if network == "unix" {
		defer os.Remove(addr)
	}
	slog.Info("server listening", "network", network, "addr", addr)

	var sessions sync.WaitGroup
	defer sessions.Wait()

	g, ctx := errgroup.WithContext(ctx)

	// Unblock Accept when the context ends.
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("server: accept: %w", err)
			}

			sessions.Add(1)
			go func() {
				defer sessions.Done()
				defer conn.Close()
				// Unblock the session's reads when the server stops.
				stop := context.AfterFunc(ctx, func() { conn.Close() })
				defer stop()
				s.serveConn(ctx, conn)
			}()
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// serveConn runs one session; session failures are logged, never fatal to
// the server or to other sessions. Errors caused by closing the connection
// at shutdown are not failures.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	err := s.handle(ctx, wyoming.NewConn(conn))
	if err == nil || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
		return
	}
	slog.Warn("session ended with error",
		"remote", conn.RemoteAddr(),
		"error", err,
	)
}

func (s *Server) runWebSocket(ctx context.Context, addr string) error {
	var sessions sync.WaitGroup

	g, ctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			slog.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		sessions.Add(1)
		defer sessions.Done()

		// Binary messages carry the same event framing as the socket
		// transports. The session context derives from the server context so
		// reads unblock when the server stops.
		sessionCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(r.Context(), cancel)
		defer stop()

		conn := websocket.NetConn(sessionCtx, c, websocket.MessageBinary)
		err = s.handle(sessionCtx, wyoming.NewConn(conn))
		if err != nil && sessionCtx.Err() == nil {
			slog.Warn("session ended with error",
				"remote", r.RemoteAddr,
				"error", err,
			)
			c.Close(websocket.StatusInternalError, "session error")
			return
		}
		c.Close(websocket.StatusNormalClosure, "")
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	slog.Info("server listening", "network", "ws", "addr", addr)

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: websocket listen %q: %w", addr, err)
		}
		return nil
	})

	err := g.Wait()
	sessions.Wait()
	return err
}

// unixPath extracts the socket path from a unix:// URI, accepting both
// unix:///abs/path and unix://rel/path forms.
func unixPath(u *url.URL) string {
	if u.Path != "" {
		if u.Host != "" {
			return u.Host + u.Path
		}
		return u.Path
	}
	return strings.TrimPrefix(u.String(), "unix://")
}
