package middleware

import (
	"net"
	"net/http"
	"strings"
)

const hstsValue = "max-age=31536000; includeSubDomains"

// HSTS tells browsers to use HTTPS for a year, subdomains included.
func HSTS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", hstsValue)
		next.ServeHTTP(w, r)
	})
}

// SecureCookies rewrites every Set-Cookie header of the response so the
// cookie carries Secure, HttpOnly and a SameSite mode.
func SecureCookies(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&cookieHardener{ResponseWriter: w}, r)
	})
}

type cookieHardener struct {
	http.ResponseWriter
	done bool
}

func (w *cookieHardener) WriteHeader(status int) {
	if !w.done {
		w.done = true
		hardenCookies(w.ResponseWriter.Header())
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *cookieHardener) Write(b []byte) (int, error) {
	if !w.done {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *cookieHardener) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func hardenCookies(h http.Header) {
	raw := h.Values("Set-Cookie")
	if len(raw) == 0 {
		return
	}
	h.Del("Set-Cookie")
	for _, line := range raw {
		c, err := http.ParseSetCookie(line)
		if err != nil {
			// Leave anything we cannot parse untouched.
			h.Add("Set-Cookie", line)
			continue
		}
		c.Secure = true
		c.HttpOnly = true
		if c.SameSite == http.SameSiteDefaultMode {
			c.SameSite = http.SameSiteStrictMode
		}
		h.Add("Set-Cookie", c.String())
	}
}

// IsHostAllowed reports whether host names one of allowedHosts. Ports and
// IPv6 brackets are ignored on both sides. An empty list allows any host.
func IsHostAllowed(host string, allowedHosts []string) bool {
	if len(allowedHosts) == 0 {
		return true
	}
	want := hostname(host)
	for _, allowed := range allowedHosts {
		if hostname(allowed) == want {
			return true
		}
	}
	return false
}

func hostname(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
}
