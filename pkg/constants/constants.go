package constants

import "time"

// Storage keys of the persisted session projection.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// PublicNotePath is the path prefix of the public read-only note page. A public
// URL is the configured public origin, this prefix and the token.
const PublicNotePath = "/public/notes/"

var (
	DefaultAPIURL       = "http://localhost:8000"
	DefaultPublicOrigin = "http://localhost:3000"
	DefaultTimeout      = 30 * time.Second
)

var (
	HTTPScheme       = "http"
	HTTPSecureScheme = "https"
)
