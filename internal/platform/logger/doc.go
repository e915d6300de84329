// Package logger configures the service-wide structured logger. Components
// receive a *slog.Logger by injection and tag themselves with a component
// field; this package only decides the handler, output, and level.
package logger
