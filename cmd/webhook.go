package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/extract"
	"github.com/sells-group/outreach-cli/internal/outreach"
)

const maxWebhookBody = 64 << 10

// notificationLabelRe matches the labels the extractor keys on.
var notificationLabelRe = regexp.MustCompile(`(?i)customer\s+(email|description)\s*:`)

// submitter queues a raw notification for background processing.
type submitter interface {
	Submit(raw string) error
}

// customerPayload is the JSON body Zapier posts for a new customer.
type customerPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// newRouter builds the HTTP surface: a public health check and the customer
// webhook behind the optional limiter and basic auth.
func newRouter(sub submitter, sc config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := sc.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if sc.RateLimitRPS > 0 {
			burst := sc.RateLimitBurst
			if burst <= 0 {
				burst = 1
			}
			r.Use(rateLimit(rate.NewLimiter(rate.Limit(sc.RateLimitRPS), burst)))
		}
		if sc.BasicAuthUser != "" {
			r.Use(middleware.BasicAuth("outreach", map[string]string{
				sc.BasicAuthUser: sc.BasicAuthPassword,
			}))
		}
		r.Post("/webhook/customer", handleCustomerWebhook(sub))
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCustomerWebhook validates the payload, converts it to the
// notification text format, and queues it. The run itself happens after the
// response is written.
func handleCustomerWebhook(sub submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			writeError(w, http.StatusBadRequest, "content type must be application/json")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read request body")
			return
		}
		if len(bytes.TrimSpace(body)) == 0 {
			writeError(w, http.StatusBadRequest, "request body is empty")
			return
		}

		var req customerPayload
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON in request body")
			return
		}

		email := strings.TrimSpace(req.Email)
		if email == "" {
			writeError(w, http.StatusBadRequest, "email is required")
			return
		}
		if !extract.IsAddress(email) {
			writeError(w, http.StatusBadRequest, "email is not a valid address")
			return
		}

		raw := notificationText(email, req.Name)
		if err := sub.Submit(raw); err != nil {
			zap.L().Warn("webhook: could not queue run", zap.String("email", email), zap.Error(err))
			if errors.Is(err, outreach.ErrQueueFull) || errors.Is(err, outreach.ErrExecutorStopped) {
				writeError(w, http.StatusServiceUnavailable, "server busy, retry later")
				return
			}
			writeError(w, http.StatusInternalServerError, "could not queue request")
			return
		}

		zap.L().Info("webhook: run queued", zap.String("email", email))
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "accepted",
			"email":  email,
		})
	}
}

// notificationText renders a webhook payload in the same format as the
// new-customer notification email. The name is flattened to one line with
// notification labels removed so it cannot supply a second customer email.
func notificationText(email, name string) string {
	return "Customer email: " + email + "\nCustomer description: " + cleanName(name)
}

func cleanName(name string) string {
	name = notificationLabelRe.ReplaceAllString(name, " ")
	return strings.Join(strings.Fields(name), " ")
}

func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			zap.L().Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
