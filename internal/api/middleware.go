package api

import (
	"net"
	"net/http"
	"strings"
)

// corsMiddleware adds CORS headers so the live dashboard can be served
// from another origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// canonicalHost permanently redirects requests for any other host to
// https://<host>. Webhooks and health checks are served on every host.
func canonicalHost(host string, exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if host == "" || sameHost(r, host) || isExempt(r.URL.Path, exempt) {
				next.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, "https://"+host+r.URL.RequestURI(), http.StatusMovedPermanently)
		})
	}
}

func sameHost(r *http.Request, host string) bool {
	if strings.EqualFold(r.Host, host) {
		return true
	}
	h, _, err := net.SplitHostPort(r.Host)
	return err == nil && strings.EqualFold(h, host)
}

func isExempt(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// clientIP returns the caller's address. middleware.RealIP has already
// applied X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return h
	}
	return r.RemoteAddr
}
