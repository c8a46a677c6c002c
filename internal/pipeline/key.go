package pipeline

import (
	"net"
	"strings"
)

// KeyFunc derives a rate limit client key from a request. Keys are
// combined with the route pattern so each route keeps its own budget
// table.
type KeyFunc func(req *Request) string

// GlobalKey shares one counter across all clients of a route.
func GlobalKey() KeyFunc {
	return func(_ *Request) string {
		return "global"
	}
}

// ClientIPKey keys by client IP: X-Forwarded-For first hop, then
// X-Real-IP, then the transport address.
func ClientIPKey() KeyFunc {
	return func(req *Request) string {
		return "ip:" + ClientIP(req)
	}
}

// HeaderKey keys by a request header value. Requests without the
// header share the anonymous bucket.
func HeaderKey(name string) KeyFunc {
	return func(req *Request) string {
		if v := req.Header.Get(name); v != "" {
			return "header:" + name + ":" + v
		}
		return "header:" + name + ":anonymous"
	}
}

// CookieKey keys by a cookie value. Requests without the cookie share
// the anonymous bucket.
func CookieKey(name string) KeyFunc {
	return func(req *Request) string {
		if v, ok := req.Cookie(name); ok && v != "" {
			return "cookie:" + name + ":" + v
		}
		return "cookie:" + name + ":anonymous"
	}
}

// ClientIP resolves the client address the way proxies present it:
// the first X-Forwarded-For hop, then X-Real-IP, then RemoteAddr with
// the port and IPv6 brackets stripped.
func ClientIP(req *Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if idx := strings.Index(xff, ","); idx >= 0 {
			first = xff[:idx]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return stripBrackets(ip)
		}
	}

	if xri := strings.TrimSpace(req.Header.Get("X-Real-IP")); xri != "" {
		return stripBrackets(xri)
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return stripBrackets(req.RemoteAddr)
	}
	return stripBrackets(host)
}

// stripBrackets removes IPv6 brackets from an address literal.
func stripBrackets(ip string) string {
	return strings.Trim(ip, "[]")
}
