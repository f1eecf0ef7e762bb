package epub

import (
	"net/url"
	"path"
	"strings"
)

// ResolvePath turns an href declared in the package document into an archive
// entry path: fragment dropped, resolved against the package directory,
// leading separator stripped, percent-decoded.
//
// Absolute URLs (remote resources) are returned unchanged.
func ResolvePath(packagePath, href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if href == "" {
		return ""
	}
	if isRemote(href) {
		return href
	}

	var resolved string
	if strings.HasPrefix(href, "/") {
		resolved = path.Clean(href)
	} else {
		resolved = path.Join(path.Dir(packagePath), href)
	}
	resolved = strings.TrimPrefix(resolved, "/")

	if decoded, err := url.PathUnescape(resolved); err == nil {
		resolved = decoded
	}
	return resolved
}

// entryPath normalizes a path taken from the container descriptor, which is
// always relative to the archive root.
func entryPath(p string) string {
	p = strings.TrimPrefix(strings.TrimSpace(p), "/")
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	return p
}

func isRemote(href string) bool {
	u, err := url.Parse(href)
	return err == nil && u.Scheme != "" && u.Host != ""
}
