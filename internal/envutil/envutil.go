package envutil

import (
	"os"
	"strings"
)

// IsDev reports whether saml-front runs in development mode, where cookies
// may be sent over plain HTTP
func IsDev() bool {
	env := strings.ToLower(os.Getenv("SAML_FRONT_ENV"))
	return env == "development" || env == "dev"
}
