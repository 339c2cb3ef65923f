package acquire

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// maxRedirects bounds manual redirect following in the socket fetcher.
const maxRedirects = 5

// SocketFetcher is the last-resort strategy: a hand-rolled HTTP/1.1 request
// over a raw TCP (or TLS) connection with manual redirect following. Some
// hosts that reject client libraries by fingerprint still answer this.
type SocketFetcher struct {
	dialTimeout time.Duration
	readTimeout time.Duration
}

// NewSocketFetcher creates a SocketFetcher with default timeouts.
func NewSocketFetcher() *SocketFetcher {
	return &SocketFetcher{
		dialTimeout: 10 * time.Second,
		readTimeout: 20 * time.Second,
	}
}

func (s *SocketFetcher) Name() string { return "bare_socket" }

// Fetch issues the request, following up to maxRedirects Location hops.
func (s *SocketFetcher) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	current := targetURL
	for hop := 0; hop <= maxRedirects; hop++ {
		status, headers, body, err := s.requestOnce(ctx, current)
		if err != nil {
			return nil, err
		}

		if status >= 300 && status < 400 {
			loc := headers.Get("Location")
			if loc == "" {
				return nil, eris.Errorf("bare_socket: redirect %d without location", status)
			}
			next, err := resolveRedirect(current, loc)
			if err != nil {
				return nil, eris.Wrapf(err, "bare_socket: resolve redirect %q", loc)
			}
			current = next
			continue
		}

		if status >= 400 {
			return nil, eris.Errorf("bare_socket: status %d", status)
		}
		if len(strings.TrimSpace(body)) == 0 {
			return nil, eris.New("bare_socket: empty body")
		}

		return &Result{
			URL:        current,
			HTML:       body,
			StatusCode: status,
			Strategy:   s.Name(),
		}, nil
	}
	return nil, eris.Errorf("bare_socket: too many redirects for %s", targetURL)
}

func (s *SocketFetcher) requestOnce(ctx context.Context, rawURL string) (int, http.Header, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, nil, "", eris.Wrapf(err, "bare_socket: parse url %s", rawURL)
	}

	host := u.Hostname()
	port := u.Port()
	useTLS := u.Scheme == "https"
	if port == "" {
		if useTLS {
			port = "443"
		} else {
			port = "80"
		}
	}

	dialer := &net.Dialer{Timeout: s.dialTimeout}
	var conn net.Conn
	if useTLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(host, port), &tls.Config{ServerName: host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	}
	if err != nil {
		return 0, nil, "", eris.Wrapf(err, "bare_socket: dial %s", host)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(s.readTimeout))
	}

	path := u.RequestURI()
	if path == "" {
		path = "/"
	}

	var req strings.Builder
	fmt.Fprintf(&req, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&req, "Host: %s\r\n", u.Host)
	fmt.Fprintf(&req, "User-Agent: %s\r\n", browserUserAgent)
	req.WriteString("Accept: text/html,*/*\r\n")
	req.WriteString("Connection: close\r\n")
	req.WriteString("\r\n")

	if _, err := io.WriteString(conn, req.String()); err != nil {
		return 0, nil, "", eris.Wrap(err, "bare_socket: write request")
	}

	reader := bufio.NewReader(io.LimitReader(conn, maxBodyBytes))
	resp, err := http.ReadResponse(reader, nil)
	if err != nil {
		return 0, nil, "", eris.Wrap(err, "bare_socket: read response")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil && len(body) == 0 {
		return 0, nil, "", eris.Wrap(err, "bare_socket: read body")
	}

	return resp.StatusCode, resp.Header, string(body), nil
}

// resolveRedirect resolves a Location header value against the current URL.
func resolveRedirect(current, location string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
