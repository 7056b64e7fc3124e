package egress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 handshake of CheckConnection.
const checkProxyTimeout = 5 * time.Second

// SOCKS5 protocol constants (RFC 1928).
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03
)

// preflightHost is the destination of the preflight CONNECT request. Only the
// proxy's reply header is read; the tunnel is never used.
const (
	preflightHost = "example.com"
	preflightPort = 443
)

// Client routes connections through a SOCKS5 proxy.
type Client struct {
	// proxyAddress is the proxy in "host:port" format.
	proxyAddress string

	dialer  proxy.Dialer
	timeout time.Duration
}

// NewClient creates a client for the proxy at proxyAddress, which may be
// "host:port" or "socks5://host:port". It does not contact the proxy;
// call CheckConnection for that.
func NewClient(proxyAddress string, timeout time.Duration) (*Client, error) {
	addr := strings.TrimPrefix(proxyAddress, "socks5://")
	if !isValidProxyAddress(addr) {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Client{
		proxyAddress: addr,
		dialer:       dialer,
		timeout:      timeout,
	}, nil
}

// isValidProxyAddress reports whether address is host:port with a port
// in 1..65535. IPv6 hosts must be bracketed.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// CheckConnection performs a SOCKS5 handshake and a CONNECT request
// against the proxy. Any well-formed CONNECT reply, success or failure,
// means the proxy works.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return ProxyStatusCannotConnect
	}

	// Greeting: version, one method, no authentication.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		return readFailure(err)
	}
	if authResp[0] != socks5Version || authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	connectReq := []byte{
		socks5Version,
		socks5CmdConnect,
		0x00, // reserved
		socks5AddrTypeDomID,
		byte(len(preflightHost)),
	}
	connectReq = append(connectReq, preflightHost...)
	connectReq = append(connectReq, byte(preflightPort>>8), byte(preflightPort&0xFF))

	if _, err := conn.Write(connectReq); err != nil {
		return ProxyStatusCannotConnect
	}

	// version, reply, reserved, address type
	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		return readFailure(err)
	}
	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

func readFailure(err error) ProxyStatus {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}

// ProxyAddress returns the proxy address in "host:port" format.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// BrowserProxy returns the proxy in the form Chromium's --proxy-server
// flag expects.
func (c *Client) BrowserProxy() string {
	return "socks5://" + c.proxyAddress
}

// DialContext connects to address through the proxy.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}
	return c.dialer.Dial(network, address)
}

// HTTPClient returns an HTTP client whose connections go through the proxy.
func (c *Client) HTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext:         c.DialContext,
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: c.timeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}
}

// CheckReachable fetches target through the proxy and reports transport
// failures. Any HTTP response, whatever its status, counts as reachable.
func (c *Client) CheckReachable(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", target, err)
	}
	client := c.HTTPClient()
	defer client.CloseIdleConnections()

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s is not reachable through %s: %w", target, c.proxyAddress, err)
	}
	_ = resp.Body.Close() //nolint:errcheck // HEAD has no body
	return nil
}
