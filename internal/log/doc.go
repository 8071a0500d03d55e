// Package log provides secure logging built on top of the standard slog package.
//
// The HTTP helpers log request URLs, header sets and interactsh registration
// details at debug level. Several of those carry credentials: Authorization
// and Cookie headers from the configuration file, the interactsh secret key
// (sent as a query parameter on every poll), and the auth token for
// self-hosted collaborator servers. SecureHandler masks them before they
// reach the output:
//   - attribute keys such as authorization, cookie, token, secret, aes_key
//   - header maps (http.Header, map[string]string) logged as one attribute
//   - credential query parameters (secret, token, key, ...) inside URLs
//   - values that look like JWTs, Bearer/Basic credentials or PEM private keys
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Debug("polling", "url", "https://oast.pro/poll?id=abc&secret=s3cr3t")
//	// url=https://oast.pro/poll?id=abc&secret=%2A%2A%2AREDACTED%2A%2A%2A
package log
