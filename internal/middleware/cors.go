package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/rs/cors"
)

const corsPreflightMaxAge = time.Hour

// CORS opens the admin API to browser dashboards on origins. An empty list or
// "*" admits any origin without credentials; an explicit list also lets the
// browser send cookies and the Authorization header.
func CORS(origins []string, logger *slog.Logger) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		// Retry-After accompanies rate-limited responses.
		ExposedHeaders: []string{requestIDHeader, "Retry-After", "WWW-Authenticate"},
		MaxAge:         int(corsPreflightMaxAge.Seconds()),
	}

	if len(origins) == 0 || slices.Contains(origins, "*") {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowedOrigins = origins
		opts.AllowCredentials = true
	}

	if logger != nil && logger.Enabled(context.Background(), slog.LevelDebug) {
		opts.Logger = corsLogger{logger: logger}
	}

	return cors.New(opts).Handler
}

// corsLogger routes rs/cors decisions to slog at debug level.
type corsLogger struct {
	logger *slog.Logger
}

func (l corsLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "cors")
}
