package common

// AccessTokenHeaderName is the HTTP header used to carry the access token
// on authenticated API requests.
const AccessTokenHeaderName = "Authorization"

// DefaultMaxFileSize is the upload size ceiling applied when the server
// config does not override it (500 MiB).
const DefaultMaxFileSize = int64(500 * 1024 * 1024)
