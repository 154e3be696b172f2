package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

// scopeName identifies records emitted through the slog bridge.
const scopeName = "github.com/mhdraihanr/loyalinn-pms"

// LogHandler is a [slog.Handler] that writes every record to next and also
// emits it as an OpenTelemetry log record. Level filtering follows next.
type LogHandler struct {
	next   slog.Handler
	logger log.Logger
	attrs  []log.KeyValue
	prefix string
}

// NewLogHandler wraps next. A nil lp uses the global logger provider, which
// is a no-op until [Setup] has run.
func NewLogHandler(next slog.Handler, lp log.LoggerProvider) *LogHandler {
	if lp == nil {
		lp = global.GetLoggerProvider()
	}
	return &LogHandler{next: next, logger: lp.Logger(scopeName)}
}

func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	var rec log.Record
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now())
	rec.SetBody(log.StringValue(r.Message))
	rec.SetSeverity(severity(r.Level))
	rec.SetSeverityText(r.Level.String())
	rec.AddAttributes(h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		rec.AddAttributes(convertAttr(h.prefix, a)...)
		return true
	})
	h.logger.Emit(ctx, rec)

	return h.next.Handle(ctx, r)
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.next = h.next.WithAttrs(attrs)
	for _, a := range attrs {
		c.attrs = append(c.attrs, convertAttr(h.prefix, a)...)
	}
	return c
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.next = h.next.WithGroup(name)
	c.prefix = h.prefix + name + "."
	return c
}

func (h *LogHandler) clone() *LogHandler {
	c := *h
	c.attrs = append([]log.KeyValue(nil), h.attrs...)
	return &c
}

func severity(l slog.Level) log.Severity {
	switch {
	case l >= slog.LevelError:
		return log.SeverityError
	case l >= slog.LevelWarn:
		return log.SeverityWarn
	case l >= slog.LevelInfo:
		return log.SeverityInfo
	default:
		return log.SeverityDebug
	}
}

// convertAttr flattens groups into dotted keys.
func convertAttr(prefix string, a slog.Attr) []log.KeyValue {
	v := a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return nil
	}
	key := prefix + a.Key
	switch v.Kind() {
	case slog.KindGroup:
		var out []log.KeyValue
		p := prefix
		if a.Key != "" {
			p = key + "."
		}
		for _, g := range v.Group() {
			out = append(out, convertAttr(p, g)...)
		}
		return out
	case slog.KindString:
		return []log.KeyValue{log.String(key, v.String())}
	case slog.KindInt64:
		return []log.KeyValue{log.Int64(key, v.Int64())}
	case slog.KindUint64:
		return []log.KeyValue{log.Int64(key, int64(v.Uint64()))}
	case slog.KindFloat64:
		return []log.KeyValue{log.Float64(key, v.Float64())}
	case slog.KindBool:
		return []log.KeyValue{log.Bool(key, v.Bool())}
	case slog.KindDuration:
		return []log.KeyValue{log.String(key, v.Duration().String())}
	case slog.KindTime:
		return []log.KeyValue{log.String(key, v.Time().Format(time.RFC3339Nano))}
	default:
		return []log.KeyValue{log.String(key, fmt.Sprint(v.Any()))}
	}
}
