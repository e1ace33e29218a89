package logging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"mercator-hq/arbiter/pkg/config"
	"mercator-hq/arbiter/pkg/model"
)

const redacted = "***"

// Common PII pattern names.
const (
	PatternSSN         = "ssn"
	PatternCardNumber  = "card_number"
	PatternEmail       = "email"
	PatternPhone       = "phone"
	PatternBearerToken = "bearer_token"
)

// sensitiveKeys are normalized attribute-name suffixes whose values are
// masked whatever they contain.
var sensitiveKeys = []string{
	"ssn", "socialsecuritynumber", "taxid",
	"dateofbirth", "dob", "birthdate",
	"accountnumber", "routingnumber", "iban", "cardnumber",
	"password", "secret", "token", "authorization",
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Redactor masks applicant identifiers in log output.
type Redactor struct {
	patterns []redactPattern
}

// NewRedactor creates a Redactor with the built-in patterns followed by
// custom ones. An invalid custom pattern is an error.
func NewRedactor(custom []config.RedactPattern) (*Redactor, error) {
	r := &Redactor{}

	// Order matters: card numbers are matched before the shorter SSN and
	// phone shapes.
	defaults := []struct{ name, regex, replacement string }{
		{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
		{PatternCardNumber, `\b(?:\d[ -]?){12,18}\d\b`, "****-****-****-****"},
		{PatternSSN, `\b\d{3}-\d{2}-\d{4}\b`, "***-**-****"},
		{PatternEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "***@***"},
		{PatternPhone, `\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`, "***-***-****"},
	}
	for _, p := range defaults {
		r.patterns = append(r.patterns, redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}

	for _, p := range custom {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p.Name, err)
		}
		replacement := p.Replacement
		if replacement == "" {
			replacement = redacted
		}
		r.patterns = append(r.patterns, redactPattern{name: p.Name, regex: regex, replacement: replacement})
	}

	return r, nil
}

// RedactString replaces every pattern match in value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// IsSensitiveKey reports whether an attribute or field name denotes an
// identifier that is always masked. Matching ignores case, underscores,
// and hyphens, and looks at the end of the name so that "applicantSSN"
// matches and "businessName" does not.
func IsSensitiveKey(key string) bool {
	normalized := strings.NewReplacer("_", "", "-", "", ".", "").Replace(strings.ToLower(key))
	for _, s := range sensitiveKeys {
		if strings.HasSuffix(normalized, s) {
			return true
		}
	}
	return false
}

// RedactAttr masks a single attribute, descending into groups and into
// map values such as applicant records.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if IsSensitiveKey(a.Key) {
		return slog.String(a.Key, redacted)
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(v.String()))
	case slog.KindGroup:
		group := v.Group()
		out := make([]any, len(group))
		for i, ga := range group {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Group(a.Key, out...)
	case slog.KindAny:
		switch val := v.Any().(type) {
		case map[string]any:
			return slog.Any(a.Key, r.redactMap(val))
		case model.ApplicantData:
			return slog.Any(a.Key, r.redactMap(val))
		case error:
			return slog.String(a.Key, r.RedactString(val.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func (r *Redactor) redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = r.redactValue(k, v)
	}
	return out
}

func (r *Redactor) redactValue(key string, v any) any {
	if IsSensitiveKey(key) {
		return redacted
	}
	switch val := v.(type) {
	case string:
		return r.RedactString(val)
	case map[string]any:
		return r.redactMap(val)
	case model.ApplicantData:
		return r.redactMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.redactValue("", item)
		}
		return out
	default:
		return v
	}
}

// RedactingHandler masks attributes and messages before forwarding them.
type RedactingHandler struct {
	next     slog.Handler
	redactor *Redactor
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler wraps next.
func NewRedactingHandler(next slog.Handler, redactor *Redactor) *RedactingHandler {
	return &RedactingHandler{next: next, redactor: redactor}
}

// Enabled reports whether next handles level.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle forwards a redacted copy of r.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.redactor.RedactString(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactor.RedactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs redacts attrs once and attaches them to next.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.redactor.RedactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(clean), redactor: h.redactor}
}

// WithGroup returns a handler that nests further attributes under name.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), redactor: h.redactor}
}
