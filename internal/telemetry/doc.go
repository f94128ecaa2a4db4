// Package telemetry sets up structured logging and Prometheus metrics.
//
// Logging is configured from LOG_LEVEL (DEBUG, INFO, WARN, ERROR) and
// LOG_FORMAT (json, text, console) unless the caller passes explicit values.
package telemetry
