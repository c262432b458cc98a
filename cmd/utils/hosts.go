package utils

import (
	"net"
	"net/http"
	"strings"
)

// TrustedHostMiddleware rejects requests whose Host header is not in the
// allow-list. An empty list allows everything (development). A bare domain
// in the list also admits its www-prefixed form.
func TrustedHostMiddleware(allowedHosts []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowedHosts) == 0 || hostAllowed(r.Host, allowedHosts) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Invalid host header", http.StatusBadRequest)
		})
	}
}

func hostAllowed(host string, allowed []string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	for _, a := range allowed {
		if host == a || host == "www."+a || strings.TrimPrefix(host, "www.") == a {
			return true
		}
	}
	return false
}
