// Package log builds the slog loggers used by the command line tool.
//
// Every logger returned by this package wraps its handler in a
// SecureHandler, which masks tracker credentials before they reach the
// output:
//   - attributes whose key names a credential (api_key, token, password,
//     the X-BUGZILLA-API-KEY header, ...)
//   - values shaped like a Bugzilla API key or a bearer token
//   - credential query parameters inside logged URLs
//
// Verbose mode lowers the level to Debug but never disables masking.
//
//	logger := log.New(os.Stderr, verbose)
//	logger.Debug("tracker request", "url", reqURL) // api_key=... is masked
package log
