package urlutil

import (
	"net/url"
	"path"
	"strings"
)

// JoinPath joins URL paths onto base, handling leading and trailing slashes
func JoinPath(base string, paths ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	allPaths := append([]string{u.Path}, paths...)
	u.Path = path.Join(allPaths...)

	// Keep the trailing slash of the last segment
	if len(paths) > 0 && strings.HasSuffix(paths[len(paths)-1], "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	return u.String(), nil
}

// NormalizeBasePath turns "", "/" and "dash/" into "", "" and "/dash".
// The result never ends with a slash so it can be used as a plain prefix.
func NormalizeBasePath(basePath string) string {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" || basePath == "/" {
		return ""
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return strings.TrimRight(basePath, "/")
}

// WithBasePath prefixes an absolute application path with the mounted base path
func WithBasePath(basePath, p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return NormalizeBasePath(basePath) + p
}
