package audit

import "context"

type nopLogger struct{}

// Nop returns a Logger that discards every event.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Log(context.Context, string, ...EventOption) error { return nil }

func (nopLogger) LogError(context.Context, string, error, ...EventOption) error { return nil }
