package env

import "net/url"

// RedactURL masks the password in a URL string such as a
// postgres:// DSN. Unparseable input is returned unchanged.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Redacted()
}

// Secrets returns the values of the given keys that are set, for
// handing to a redacting logger.
func Secrets(l Loader, keys ...string) []string {
	var out []string
	for _, k := range keys {
		if v := l.Get(k); v != "" {
			out = append(out, v)
		}
	}
	return out
}
