package dnsclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calloway/mailscan/internal/core"
)

func newDoHServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(server *httptest.Server) *Client {
	return New(zap.NewNop(),
		WithDoHURL(server.URL),
		WithFallbackResolvers(nil),
	)
}

func TestTXTViaDoH(t *testing.T) {
	server := newDoHServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "example.com", r.URL.Query().Get("name"))
		assert.Equal(t, "TXT", r.URL.Query().Get("type"))
		assert.Equal(t, "application/dns-json", r.Header.Get("Accept"))
		fmt.Fprint(w, `{"Status":0,"Answer":[
			{"type":16,"data":"\"v=spf1 include:_spf.example.com -all\""},
			{"type":16,"data":"\"google-site-verification=abc\""}
		]}`)
	})
	c := newTestClient(server)

	records, err := c.TXT(context.Background(), "example.com")

	require.NoError(t, err)
	assert.Equal(t, []string{
		"v=spf1 include:_spf.example.com -all",
		"google-site-verification=abc",
	}, records)
}

func TestTXTDeduplicatesAnswers(t *testing.T) {
	server := newDoHServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"Status":0,"Answer":[
			{"type":16,"data":"\"same\""},
			{"type":16,"data":"\"same\""}
		]}`)
	})
	c := newTestClient(server)

	records, err := c.TXT(context.Background(), "example.com")

	require.NoError(t, err)
	assert.Equal(t, []string{"same"}, records)
}

func TestTXTEmptyAnswerIsNotAnError(t *testing.T) {
	server := newDoHServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"Status":3,"Answer":[]}`)
	})
	c := newTestClient(server)

	records, err := c.TXT(context.Background(), "nxdomain.example")

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTXTNon2xxIsNotAnError(t *testing.T) {
	server := newDoHServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c := newTestClient(server)

	records, err := c.TXT(context.Background(), "example.com")

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTXTTransportFailureIsAnError(t *testing.T) {
	server := newDoHServer(t, func(w http.ResponseWriter, _ *http.Request) {})
	server.Close()
	c := newTestClient(server)

	_, err := c.TXT(context.Background(), "example.com")

	assert.Error(t, err)
}

func TestMXSortedByPriority(t *testing.T) {
	server := newDoHServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "MX", r.URL.Query().Get("type"))
		fmt.Fprint(w, `{"Status":0,"Answer":[
			{"type":15,"data":"20 backup.example.com."},
			{"type":15,"data":"5 primary.example.com."},
			{"type":15,"data":"10 secondary.example.com."}
		]}`)
	})
	c := newTestClient(server)

	records, err := c.MX(context.Background(), "example.com")

	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, core.MXRecord{Exchange: "primary.example.com", Priority: 5}, records[0])
	assert.Equal(t, core.MXRecord{Exchange: "secondary.example.com", Priority: 10}, records[1])
	assert.Equal(t, core.MXRecord{Exchange: "backup.example.com", Priority: 20}, records[2])
}

func TestMXSkipsMalformedAnswers(t *testing.T) {
	server := newDoHServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"Status":0,"Answer":[
			{"type":15,"data":"not-a-priority mx.example.com."},
			{"type":15,"data":"garbage"},
			{"type":15,"data":"10 mx.example.com."}
		]}`)
	})
	c := newTestClient(server)

	records, err := c.MX(context.Background(), "example.com")

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "mx.example.com", records[0].Exchange)
}

func TestMXEmptyAnswer(t *testing.T) {
	server := newDoHServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"Status":0,"Answer":[]}`)
	})
	c := newTestClient(server)

	records, err := c.MX(context.Background(), "example.com")

	require.NoError(t, err)
	assert.Empty(t, records)
}
