package mailxsmtp_test

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type dialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (d dialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d(ctx, network, address)
}

type session struct {
	tls      bool
	auth     string
	mailFrom string
	rcpts    []string
	data     string
	quit     bool
}

// fakeSMTP is a scripted SMTP server. Each connection is one session.
type fakeSMTP struct {
	t         *testing.T
	tlsConfig *tls.Config
	startTLS  bool

	rejectStartTLS bool
	rejectAuth     bool
	rejectMailFrom bool
	rejectRcpt     map[string]bool
	rejectData     bool
	dropOnData     bool
	rejectQueued   bool
	rejectQuit     bool

	mu       sync.Mutex
	sessions []*session
	wg       sync.WaitGroup
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	return &fakeSMTP{t: t, rejectRcpt: map[string]bool{}}
}

// withTLS enables STARTTLS with a throwaway certificate valid for
// 127.0.0.1 and returns a client config that trusts it.
func (f *fakeSMTP) withTLS() *tls.Config {
	f.t.Helper()
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	f.t.Cleanup(srv.Close)

	f.tlsConfig = srv.TLS.Clone()
	f.tlsConfig.NextProtos = nil
	f.startTLS = true

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	return &tls.Config{RootCAs: pool, ServerName: "127.0.0.1"}
}

// dialer returns a Dialer that serves each connection over net.Pipe.
func (f *fakeSMTP) dialer() dialerFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		server, client := net.Pipe()
		f.serve(server)
		return client, nil
	}
}

// listen serves real TCP connections on 127.0.0.1 and returns the port.
func (f *fakeSMTP) listen() int {
	f.t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		f.t.Fatalf("listen: %v", err)
	}
	f.t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			f.serve(conn)
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeSMTP) serve(conn net.Conn) {
	s := &session{}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer conn.Close()
		f.converse(conn, s)
	}()
}

func (f *fakeSMTP) wait() []*session {
	f.wg.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*session(nil), f.sessions...)
}

func (f *fakeSMTP) converse(conn net.Conn, s *session) {
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	reply := func(format string, args ...any) bool {
		if _, err := fmt.Fprintf(w, format+"\r\n", args...); err != nil {
			return false
		}
		return w.Flush() == nil
	}

	if !reply("220 fake smtp ready") {
		return
	}

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250-fake")
			if f.startTLS && !s.tls {
				reply("250-STARTTLS")
			}
			if s.tls {
				reply("250-AUTH PLAIN")
			}
			reply("250 OK")
		case upper == "STARTTLS":
			if f.rejectStartTLS || f.tlsConfig == nil {
				reply("454 TLS not available")
				continue
			}
			reply("220 Ready to start TLS")
			tlsConn := tls.Server(conn, f.tlsConfig)
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			r = bufio.NewReader(conn)
			w = bufio.NewWriter(conn)
			s.tls = true
		case strings.HasPrefix(upper, "AUTH PLAIN"):
			if f.rejectAuth {
				reply("535 5.7.8 authentication failed")
				continue
			}
			raw, _ := base64.StdEncoding.DecodeString(strings.TrimSpace(line[len("AUTH PLAIN"):]))
			s.auth = strings.ReplaceAll(string(raw), "\x00", ":")
			reply("235 2.7.0 Authentication successful")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			if f.rejectMailFrom {
				reply("553 5.1.8 sender rejected")
				continue
			}
			s.mailFrom = address(line)
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			addr := address(line)
			if f.rejectRcpt[addr] {
				reply("550 5.1.1 no such user")
				continue
			}
			s.rcpts = append(s.rcpts, addr)
			reply("250 OK")
		case upper == "DATA":
			if f.rejectData {
				reply("554 5.3.0 no valid recipients")
				continue
			}
			reply("354 End data with <CR><LF>.<CR><LF>")
			if f.dropOnData {
				return
			}
			var data strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				data.WriteString(strings.TrimPrefix(l, "."))
			}
			s.data = data.String()
			if f.rejectQueued {
				reply("554 5.7.1 message rejected as spam")
				continue
			}
			reply("250 OK queued")
		case upper == "QUIT":
			s.quit = true
			if f.rejectQuit {
				reply("554 5.0.0 not now")
				return
			}
			reply("221 Bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func address(line string) string {
	start := strings.Index(line, "<")
	end := strings.Index(line, ">")
	if start != -1 && end > start {
		return line[start+1 : end]
	}
	return strings.TrimSpace(line[strings.Index(line, ":")+1:])
}
