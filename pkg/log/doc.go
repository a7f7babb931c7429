/*
Package log provides structured logging for Stevedore using zerolog.

The package wraps zerolog behind a global logger initialized once via
log.Init, with JSON output for production and a console writer for
development. Child loggers carry scheduling context so every line from a
single placement request can be correlated:

	schedLog := log.WithComponent("scheduler")
	schedLog.Info().
		Str("request_id", spec.RequestID).
		Str("backend", top.Host.Key()).
		Float64("weight", top.Weight).
		Msg("placement dispatched")

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Context helpers:

  - WithComponent("hoststate" | "scheduler" | "api" | ...)
  - WithRequestID(id) for per-request correlation
  - WithBackend(key) for per-back-end correlation

Use Info level in production; Debug logs every filter elimination and
weigher score and is intended for development and `stevedore simulate`.
*/
package log
