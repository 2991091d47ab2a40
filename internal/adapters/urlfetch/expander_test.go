package urlfetch

import (
	"context"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestExpander() *Expander {
	return NewExpander(zap.NewNop(), 2*time.Second, 5)
}

func TestExpandRejectsUnparseableURL(t *testing.T) {
	e := newTestExpander()

	_, _, err := e.Expand(context.Background(), "http://%zz%zz")

	assert.Error(t, err)
}

func TestExpandRefusesPrivateTargets(t *testing.T) {
	e := newTestExpander()

	for _, target := range []string{
		"http://127.0.0.1/redirect",
		"http://10.0.0.5/x",
		"http://192.168.1.1/x",
		"http://169.254.169.254/latest/meta-data",
		"http://localhost/x",
		"http://100.64.0.1/x",
		"http://198.18.0.1/x",
	} {
		t.Run(target, func(t *testing.T) {
			_, _, err := e.Expand(context.Background(), target)
			assert.Error(t, err)
		})
	}
}

func TestTargetAllowedPublicIP(t *testing.T) {
	u, _ := url.Parse("http://203.0.113.7/path")
	assert.True(t, targetAllowed(u))
}

func TestTargetAllowedEmptyHost(t *testing.T) {
	u, _ := url.Parse("http:///just-a-path")
	assert.False(t, targetAllowed(u))
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"192.168.0.1", true},
		{"127.0.0.1", true},
		{"169.254.1.1", true},
		{"0.0.0.0", true},
		{"100.64.0.1", true},
		{"100.127.255.255", true},
		{"198.18.0.1", true},
		{"198.19.255.255", true},
		{"::1", true},
		{"8.8.8.8", false},
		{"203.0.113.7", false},
		{"100.63.0.1", false},
		{"198.20.0.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.private, isPrivateIP(net.ParseIP(tt.ip)))
		})
	}
}

func TestNewExpanderDefaults(t *testing.T) {
	e := NewExpander(zap.NewNop(), 0, 0)

	assert.Equal(t, 5, e.maxHops)
	assert.Equal(t, 8*time.Second, e.client.Timeout)
}
