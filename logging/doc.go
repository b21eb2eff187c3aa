// Package logging builds the service's zap logger: a console core teed with a
// rotating JSON file, both behind a filter that redacts secrets and collapses
// base64 pixel payloads into a short summary.
//
// Components take a *zap.Logger (Logger.Zap) and tests pass zaptest loggers.
package logging
