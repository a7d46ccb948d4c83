package tasktree

import "context"

// contextKey is the type for context keys in this package.
type contextKey int

const (
	// outputKey is the context key for the task output.
	outputKey contextKey = iota
	// taskIDKey is the context key for the id of the running task.
	taskIDKey
	// verboseKey is the context key for verbose mode.
	verboseKey
)

// WithOutput returns a context carrying out.
func WithOutput(ctx context.Context, out *Output) context.Context {
	return context.WithValue(ctx, outputKey, out)
}

// OutputFromContext returns the output from the context.
// Returns StdOutput if none is set.
func OutputFromContext(ctx context.Context) *Output {
	if out, ok := ctx.Value(outputKey).(*Output); ok && out != nil {
		return out
	}
	return StdOutput()
}

// WithTaskID returns a context carrying the id of the running task.
func WithTaskID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, taskIDKey, id)
}

// TaskIDFromContext returns the id of the running task, or "".
func TaskIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey).(string)
	return id
}

// WithVerbose returns a context with verbose mode set.
func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, verboseKey, verbose)
}

// VerboseFromContext reports whether verbose mode is enabled.
func VerboseFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(verboseKey).(bool)
	return v
}

// Printf prints formatted output to the context's stdout.
func Printf(ctx context.Context, format string, args ...any) {
	_, _ = OutputFromContext(ctx).Printf(format, args...)
}

// Println prints to the context's stdout.
func Println(ctx context.Context, args ...any) {
	_, _ = OutputFromContext(ctx).Println(args...)
}
