package logging

import "log/slog"

// Option modifies a logger after it has been built.
type Option = func(l *slog.Logger)

// WithDefaultLogger installs the logger as the process-wide slog default.
func WithDefaultLogger() Option {
	return func(l *slog.Logger) {
		slog.SetDefault(l)
	}
}

// WithAppName tags every record with the application name.
//
// Parameters:
//   - appName: The name reported under the "app" key.
//
// Returns:
//   - Option: A function that adds the application name to the logger.
func WithAppName(appName string) Option {
	return func(l *slog.Logger) {
		*l = *l.With(
			slog.String(KeyAppName, appName),
		)
	}
}

// WithComponent tags every record with a component name.
func WithComponent(component string) Option {
	return func(l *slog.Logger) {
		*l = *LoggerWithComponent(l, component)
	}
}
