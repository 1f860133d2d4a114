// Package log's helpers are split across this file's examples and
// log.go's implementation.
//
// Initializing:
//
//	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
//
// Structured logging with service/sandbox/lease context:
//
//	log.WithService("echo").Info().Msg("service started")
//	log.WithSandbox(2).Debug().Msg("leased for request")
package log
