package dnsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/calloway/mailscan/internal/core"
)

// defaultDoHURL is the JSON DNS-over-HTTPS endpoint queried first.
const defaultDoHURL = "https://dns.google/resolve"

// defaultFallbackResolvers are tried over plain DNS when DoH yields
// nothing.
var defaultFallbackResolvers = []string{"8.8.8.8", "1.1.1.1"}

// Client resolves TXT and MX records via DNS-over-HTTPS with a plain-DNS
// UDP fallback. It implements core.RecordResolver.
type Client struct {
	httpClient *http.Client
	dohURL     string
	fallback   []string
	timeout    time.Duration
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for DoH queries.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithDoHURL overrides the DoH endpoint.
func WithDoHURL(u string) Option {
	return func(c *Client) { c.dohURL = u }
}

// WithFallbackResolvers overrides the plain-DNS fallback resolver IPs.
func WithFallbackResolvers(ips []string) Option {
	return func(c *Client) { c.fallback = ips }
}

// WithTimeout bounds each individual lookup.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) { c.timeout = t }
}

// New creates a resolver client.
func New(logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 5,
			},
		},
		dohURL:   defaultDoHURL,
		fallback: defaultFallbackResolvers,
		timeout:  5 * time.Second,
		logger:   logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TXT returns the TXT records for a name. A clean empty answer is not an
// error; only a total transport failure is.
func (c *Client) TXT(ctx context.Context, name string) ([]string, error) {
	records, err := c.query(ctx, name, "TXT", mdns.TypeTXT)
	if err != nil {
		return nil, err
	}
	for i, r := range records {
		records[i] = strings.Trim(r, "\"")
	}
	return records, nil
}

// MX returns the MX records for a name sorted ascending by priority.
func (c *Client) MX(ctx context.Context, name string) ([]core.MXRecord, error) {
	records, err := c.query(ctx, name, "MX", mdns.TypeMX)
	if err != nil {
		return nil, err
	}

	mx := make([]core.MXRecord, 0, len(records))
	for _, r := range records {
		// DoH and plain DNS both render MX data as "<priority> <exchange>".
		fields := strings.Fields(r)
		if len(fields) != 2 {
			continue
		}
		priority, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		mx = append(mx, core.MXRecord{
			Exchange: strings.TrimSuffix(fields[1], "."),
			Priority: priority,
		})
	}
	sort.Slice(mx, func(i, j int) bool { return mx[i].Priority < mx[j].Priority })
	return mx, nil
}

// query tries DoH first and each fallback resolver after. The error is
// reported only when every path failed with a transport error and no
// clean answer was seen.
func (c *Client) query(ctx context.Context, name, recordType string, qtype uint16) ([]string, error) {
	records, dohErr := c.dohQuery(ctx, name, recordType)
	if dohErr == nil {
		return records, nil
	}
	c.logger.Debug("DoH query failed, trying UDP fallback",
		zap.String("name", name),
		zap.String("type", recordType),
		zap.Error(dohErr))

	var lastErr error = dohErr
	for _, resolver := range c.fallback {
		records, err := c.udpQuery(ctx, name, qtype, resolver)
		if err == nil {
			return records, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all resolvers failed for %s %s: %w", recordType, name, lastErr)
}

// dohResponse is the JSON shape of an application/dns-json answer.
type dohResponse struct {
	Status int `json:"Status"`
	Answer []struct {
		Type int    `json:"type"`
		Data string `json:"data"`
	} `json:"Answer"`
}

func (c *Client) dohQuery(ctx context.Context, name, recordType string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.dohURL, nil)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("name", name)
	q.Set("type", recordType)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/dns-json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Non-2xx means "no records", not a transport failure.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return []string{}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var data dohResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}
	if data.Status != 0 || len(data.Answer) == 0 {
		return []string{}, nil
	}

	records := make([]string, 0, len(data.Answer))
	seen := make(map[string]bool)
	for _, answer := range data.Answer {
		rd := strings.TrimSpace(answer.Data)
		if rd == "" || seen[rd] {
			continue
		}
		records = append(records, rd)
		seen[rd] = true
	}
	return records, nil
}

func (c *Client) udpQuery(ctx context.Context, name string, qtype uint16, resolverIP string) ([]string, error) {
	msg := new(mdns.Msg)
	msg.SetQuestion(mdns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	client := &mdns.Client{Timeout: c.timeout}
	r, _, err := client.ExchangeContext(ctx, msg, net.JoinHostPort(resolverIP, "53"))
	if err != nil {
		return nil, err
	}
	if r.Rcode == mdns.RcodeNameError {
		return []string{}, nil
	}

	var records []string
	for _, rr := range r.Answer {
		switch v := rr.(type) {
		case *mdns.TXT:
			records = append(records, strings.Join(v.Txt, ""))
		case *mdns.MX:
			records = append(records, fmt.Sprintf("%d %s", v.Preference, v.Mx))
		}
	}
	if records == nil {
		records = []string{}
	}
	return records, nil
}
