// Package logger provides a small factory over log/slog with consistent
// service-wide defaults.
//
// Production gets JSON output at info level, development gets text output at
// debug level; both attach the service name to every record:
//
//	log := logger.New(logger.WithEnvironment(cfg.Environment, "visitpulse"))
//	logger.SetAsDefault(log)
package logger
