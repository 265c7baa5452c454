package logger

import "log/slog"

// Error records a single error under the key "error". Nil yields an empty
// attr, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TenantID records the tenant identifier.
func TenantID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("tenant_id", id)
}

// Plan records a plan identifier.
func Plan(id string) slog.Attr {
	return slog.String("plan", id)
}

// EventID records a provider event identifier.
func EventID(id string) slog.Attr {
	return slog.String("event_id", id)
}
