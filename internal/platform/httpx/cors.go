package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const corsAllowedMethods = "DELETE, GET, HEAD, OPTIONS, PATCH, POST, PUT"

// CORSConfig describes which browser origins may call the API.
type CORSConfig struct {
	// AllowedOrigins lists exact origins; "*" admits any origin.
	AllowedOrigins []string
	// AllowCredentials adds Access-Control-Allow-Credentials: true.
	AllowCredentials bool
	// MaxAge controls preflight caching; zero means ten minutes.
	MaxAge time.Duration
}

// CORS answers preflight requests and decorates responses for allowed origins.
//
// Every method and every requested header is permitted for an allowed origin.
// The origin is echoed rather than sent as "*" so credentialed requests work.
func CORS(cfg CORSConfig) Middleware {
	allowAny := false
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if origin == "*" {
			allowAny = true
			continue
		}
		allowed[origin] = struct{}{}
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	isAllowed := func(origin string) bool {
		if allowAny {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := w.Header()
			header.Add("Vary", "Origin")
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !isAllowed(origin) {
				if preflight {
					http.Error(w, "Disallowed CORS origin", http.StatusBadRequest)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			header.Set("Access-Control-Allow-Origin", origin)
			if cfg.AllowCredentials {
				header.Set("Access-Control-Allow-Credentials", "true")
			}
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}

			header.Set("Access-Control-Allow-Methods", corsAllowedMethods)
			if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
				header.Set("Access-Control-Allow-Headers", requested)
			}
			header.Set("Access-Control-Max-Age", strconv.Itoa(int(maxAge/time.Second)))
			header.Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
	}
}
