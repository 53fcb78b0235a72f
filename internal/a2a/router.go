// Package a2a routes requests from the orchestrator to specialist
// sub-services. Each target carries its own timeout budget; session state is
// serialized as a plain attribute map so the remote process can rebuild
// context through the standard resolver.
package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stagecrafthq/stagecraft/internal/observability"
	"github.com/stagecrafthq/stagecraft/internal/retry"
	"github.com/stagecrafthq/stagecraft/internal/session"
	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// ErrTimeout is returned when a specialist call exceeds its budget.
// Fail-closed: the call never blocks past the deadline.
var ErrTimeout = errors.New("specialist call exceeded timeout budget")

// ErrUnknownTarget is returned for target names with no configuration.
var ErrUnknownTarget = errors.New("unknown specialist target")

// RemoteError is a failure envelope returned by a specialist.
type RemoteError struct {
	Target     string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("specialist %s failed (status %d): %s", e.Target, e.StatusCode, e.Message)
}

// Target configures one specialist sub-service. Timeout budgets are
// per-target: short for metadata lookups, longer for generative calls.
type Target struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Envelope is the request shape sent to specialists. State is a plain map —
// never an accessor object — under the resolver's standard keys.
type Envelope struct {
	SessionID string         `json:"session_id"`
	TenantID  string         `json:"tenant_id"`
	State     map[string]any `json:"state"`
	Message   string         `json:"message"`
}

// Response is the single internal shape all specialist replies normalize to.
type Response struct {
	Text string          `json:"text"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

// Router dispatches calls to configured specialist targets.
type Router struct {
	targets map[string]Target
	client  *http.Client
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.Metrics
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Router) {
		if client != nil {
			r.client = client
		}
	}
}

// WithMetrics records per-target call latency.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// NewRouter creates a router for the given targets.
func NewRouter(targets []Target, opts ...Option) *Router {
	r := &Router{
		targets: make(map[string]Target, len(targets)),
		client:  &http.Client{},
		logger:  slog.Default(),
		tracer:  otel.Tracer("stagecraft/a2a"),
	}
	for _, t := range targets {
		if t.Timeout <= 0 {
			t.Timeout = 30 * time.Second
		}
		r.targets[t.Name] = t
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Targets returns the configured target names.
func (r *Router) Targets() []string {
	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	return names
}

// Call sends a message to the named target under its timeout budget and
// normalizes the reply. State-mutating requests go through Call and are
// never retried; deadline expiry surfaces as ErrTimeout.
func (r *Router) Call(ctx context.Context, targetName string, sess *models.Session, message string) (*Response, error) {
	start := time.Now()
	resp, err := r.call(ctx, targetName, sess, message)
	if r.metrics != nil {
		status := "ok"
		switch {
		case errors.Is(err, ErrTimeout):
			status = "timeout"
		case err != nil:
			status = "remote_error"
		}
		r.metrics.SpecialistCallDuration.WithLabelValues(targetName, status).Observe(time.Since(start).Seconds())
	}
	return resp, err
}

func (r *Router) call(ctx context.Context, targetName string, sess *models.Session, message string) (*Response, error) {
	target, ok := r.targets[targetName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, targetName)
	}

	ctx, span := r.tracer.Start(ctx, "a2a.call",
		trace.WithAttributes(attribute.String("a2a.target", targetName)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, target.Timeout)
	defer cancel()

	env := Envelope{Message: message}
	if sess != nil {
		env.SessionID = sess.ID
		env.TenantID = sess.TenantID
		env.State = session.Serialize(sess)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
			r.logger.Warn("specialist call timed out",
				"target", targetName,
				"budget", target.Timeout,
				"elapsed", time.Since(start),
			)
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, targetName, target.Timeout)
		}
		return nil, &RemoteError{Target: targetName, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, targetName, target.Timeout)
		}
		return nil, &RemoteError{Target: targetName, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode >= 400 {
		return nil, &RemoteError{
			Target:     targetName,
			StatusCode: resp.StatusCode,
			Message:    remoteErrorMessage(raw),
		}
	}

	normalized, err := Normalize(raw)
	if err != nil {
		return nil, &RemoteError{Target: targetName, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return normalized, nil
}

// CallIdempotent wraps Call with bounded retries. Only safe for pure reads;
// timeouts and remote 5xx failures are retried, everything else is not.
func (r *Router) CallIdempotent(ctx context.Context, targetName string, sess *models.Session, message string) (*Response, error) {
	var out *Response
	err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
		resp, err := r.Call(ctx, targetName, sess, message)
		if err != nil {
			return err
		}
		out = resp
		return nil
	}, func(err error) bool {
		if errors.Is(err, ErrTimeout) {
			return true
		}
		var remote *RemoteError
		return errors.As(err, &remote) && remote.StatusCode >= 500
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// maxResponseBytes bounds specialist responses (4MB).
const maxResponseBytes = 4 << 20

func remoteErrorMessage(raw []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &env); err == nil {
		if env.Error.Message != "" {
			return env.Error.Message
		}
		if env.Message != "" {
			return env.Message
		}
	}
	if len(raw) > 256 {
		raw = raw[:256]
	}
	return string(raw)
}
