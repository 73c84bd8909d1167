package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces every masked value.
const MaskValue = "***REDACTED***"

// credentialKeys are attribute keys that are always masked.
var credentialKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"x-bugzilla-api-key":  true,
	"x-bugzilla-token":    true,
	"x-bugzilla-password": true,
	"api_key":             true,
	"apikey":              true,
	"api-key":             true,
	"bugzilla_api_key":    true,
	"password":            true,
	"token":               true,
	"secret":              true,
}

// credentialKeywords mask any key that contains them.
var credentialKeywords = []string{
	"password", "passwd", "secret", "token", "credential", "api_key", "apikey",
}

// credentialParams are URL query parameters that carry credentials on the
// Bugzilla REST API.
var credentialParams = []string{
	"api_key", "Bugzilla_api_key", "token", "Bugzilla_token", "Bugzilla_password",
}

// credentialValues are value shapes masked regardless of the key.
var credentialValues = []*regexp.Regexp{
	// Bugzilla API keys are 40 alphanumeric characters.
	regexp.MustCompile(`^[A-Za-z0-9]{40}$`),
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
}

// SecureHandler is an slog.Handler that masks credentials in attributes
// before passing records on to the wrapped handler.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler wraps slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled implements slog.Handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(mask(a))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

// WithAttrs implements slog.Handler.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = mask(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(masked)}
}

// WithGroup implements slog.Handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func mask(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, g := range group {
			masked[i] = mask(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	}

	if isCredentialKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() != slog.KindString {
		return a
	}
	value := a.Value.String()
	if isCredentialValue(value) {
		return slog.String(a.Key, MaskValue)
	}
	if cleaned, ok := maskURL(value); ok {
		return slog.String(a.Key, cleaned)
	}
	return a
}

func isCredentialKey(key string) bool {
	key = strings.ToLower(key)
	if credentialKeys[key] {
		return true
	}
	for _, kw := range credentialKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

func isCredentialValue(value string) bool {
	for _, re := range credentialValues {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// maskURL masks credential query parameters and userinfo passwords in an
// absolute URL. ok is false when value is not a URL or nothing was masked.
func maskURL(value string) (string, bool) {
	if !strings.Contains(value, "://") {
		return "", false
	}
	u, err := url.Parse(value)
	if err != nil {
		return "", false
	}

	changed := false
	if u.User != nil {
		if _, set := u.User.Password(); set {
			u.User = url.UserPassword(u.User.Username(), MaskValue)
			changed = true
		}
	}

	q := u.Query()
	for _, p := range credentialParams {
		if q.Has(p) {
			q.Set(p, MaskValue)
			changed = true
		}
	}
	if !changed {
		return "", false
	}
	u.RawQuery = q.Encode()
	return u.String(), true
}

func level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// New returns a text logger writing to w. The level is Warn, or Debug
// when verbose is set.
func New(w io.Writer, verbose bool) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level(verbose)})
	return slog.New(NewSecureHandler(h))
}

// NewJSON is like New but writes JSON lines.
func NewJSON(w io.Writer, verbose bool) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level(verbose)})
	return slog.New(NewSecureHandler(h))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
