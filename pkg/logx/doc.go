// Package logx configures steeb's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - call sites stable while sinks/levels change at runtime (Service.Apply)
//   - structured fields ergonomic (logx.String, logx.Err, ...)
//   - a safe zero-value logger for components built before logging is up
package logx
