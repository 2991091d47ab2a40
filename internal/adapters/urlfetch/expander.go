package urlfetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Expander follows short-link redirects to their final destination. It
// implements core.URLExpander. Targets resolving to private or reserved
// address ranges are refused.
type Expander struct {
	client  *http.Client
	logger  *zap.Logger
	maxHops int
}

// NewExpander creates an expander with a hop cap and per-request
// timeout.
func NewExpander(logger *zap.Logger, timeout time.Duration, maxHops int) *Expander {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if maxHops <= 0 {
		maxHops = 5
	}

	e := &Expander{logger: logger, maxHops: maxHops}
	e.client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxHops {
				return fmt.Errorf("too many redirects")
			}
			if !targetAllowed(req.URL) {
				return fmt.Errorf("redirect target resolves to a private address")
			}
			return nil
		},
	}
	return e
}

// Expand issues one best-effort HEAD fetch following redirects and
// returns the final URL plus a readable hop chain. Any failure leaves
// the caller with the original URL.
func (e *Expander) Expand(ctx context.Context, rawURL string) (string, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	if !targetAllowed(parsed) {
		return "", "", fmt.Errorf("target resolves to a private address")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", "", err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	final := resp.Request.URL.String()
	chain := ""
	if final != rawURL {
		chain = rawURL + " -> " + final
		e.logger.Debug("Short link expanded",
			zap.String("original", rawURL),
			zap.String("resolved", final))
	}
	return final, chain, nil
}

// targetAllowed refuses hosts that resolve only to private, loopback or
// otherwise reserved addresses.
func targetAllowed(u *url.URL) bool {
	host := u.Hostname()
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return false
	}

	if ip := net.ParseIP(host); ip != nil {
		return !isPrivateIP(ip)
	}

	addrs, err := net.LookupHost(host)
	if err != nil || len(addrs) == 0 {
		// Let the fetch itself fail; the caller treats that as
		// non-fatal.
		return true
	}
	for _, addr := range addrs {
		if ip := net.ParseIP(addr); ip != nil && isPrivateIP(ip) {
			return false
		}
	}
	return true
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil {
		// Carrier-grade NAT and benchmarking ranges.
		if ip4[0] == 100 && ip4[1] >= 64 && ip4[1] <= 127 {
			return true
		}
		if ip4[0] == 198 && (ip4[1] == 18 || ip4[1] == 19) {
			return true
		}
	}
	return false
}
