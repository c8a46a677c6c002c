package pipeline

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{
			name:   "forwarded for first hop",
			header: map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1, 10.0.0.2"},
			remote: "10.0.0.2:443",
			want:   "198.51.100.7",
		},
		{
			name:   "real ip fallback",
			header: map[string]string{"X-Real-IP": "203.0.113.9"},
			remote: "10.0.0.2:443",
			want:   "203.0.113.9",
		},
		{
			name:   "remote addr",
			remote: "192.0.2.4:55123",
			want:   "192.0.2.4",
		},
		{
			name:   "ipv6 brackets stripped",
			remote: "[2001:db8::1]:443",
			want:   "2001:db8::1",
		},
		{
			name:   "remote addr without port",
			remote: "192.0.2.4",
			want:   "192.0.2.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{Header: http.Header{}, RemoteAddr: tt.remote}
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestKeyFuncs(t *testing.T) {
	req := &Request{
		Header:     http.Header{},
		RemoteAddr: "192.0.2.4:1234",
		Cookies:    []*http.Cookie{{Name: "session", Value: "s-1"}},
	}
	req.Header.Set("X-Api-Key", "key-1")

	assert.Equal(t, "global", GlobalKey()(req))
	assert.Equal(t, "ip:192.0.2.4", ClientIPKey()(req))
	assert.Equal(t, "header:X-Api-Key:key-1", HeaderKey("X-Api-Key")(req))
	assert.Equal(t, "header:X-Other:anonymous", HeaderKey("X-Other")(req))
	assert.Equal(t, "cookie:session:s-1", CookieKey("session")(req))
	assert.Equal(t, "cookie:other:anonymous", CookieKey("other")(req))
}
