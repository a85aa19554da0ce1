package security

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPrivateIP(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1":       true,
		"10.1.2.3":        true,
		"172.20.0.1":      true,
		"192.168.1.1":     true,
		"169.254.169.254": true,
		"::1":             true,
		"8.8.8.8":         false,
		"93.184.216.34":   false,
	}
	for ip, want := range tests {
		assert.Equal(t, want, IsPrivateIP(net.ParseIP(ip)), ip)
	}
	assert.True(t, IsPrivateIP(nil))
}

func TestIsBlockedHostname(t *testing.T) {
	assert.True(t, IsBlockedHostname("localhost"))
	assert.True(t, IsBlockedHostname("LOCALHOST."))
	assert.True(t, IsBlockedHostname("api.kubernetes.default.svc"))
	assert.False(t, IsBlockedHostname("example.com"))
}

func TestURLGuardCheck(t *testing.T) {
	guard := &URLGuard{}
	ctx := context.Background()

	assert.Error(t, guard.Check(ctx, "ftp://example.com/file"))
	assert.Error(t, guard.Check(ctx, "http:///nohost"))
	assert.Error(t, guard.Check(ctx, "http://localhost:8080/"))
	assert.Error(t, guard.Check(ctx, "http://127.0.0.1/"))
	assert.Error(t, guard.Check(ctx, "http://[::1]/"))
	assert.NoError(t, guard.Check(ctx, "https://93.184.216.34/"))

	open := &URLGuard{AllowPrivate: true}
	assert.NoError(t, open.Check(ctx, "http://127.0.0.1:9999/"))
	assert.Error(t, open.Check(ctx, "file:///etc/passwd"))
}

func TestURLGuardDialControl(t *testing.T) {
	guard := &URLGuard{}

	tests := []struct {
		address string
		allowed bool
	}{
		{"93.184.216.34:443", true},
		{"[2606:2800:220:1:248:1893:25c8:1946]:80", true},
		{"127.0.0.1:80", false},
		{"10.0.0.5:8080", false},
		{"169.254.169.254:80", false},
		{"[::1]:443", false},
		{"[::ffff:127.0.0.1]:80", false},
		{"not-an-address", false},
	}
	for _, tt := range tests {
		err := guard.DialControl("tcp", tt.address, nil)
		if tt.allowed {
			assert.NoError(t, err, tt.address)
		} else {
			assert.Error(t, err, tt.address)
		}
	}

	permissive := &URLGuard{AllowPrivate: true}
	assert.NoError(t, permissive.DialControl("tcp", "127.0.0.1:80", nil))
}
