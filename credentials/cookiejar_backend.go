package credentials

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

var _ Backend = (*CookieJarBackend)(nil)

// CookieJarBackend keeps credentials as cookies in an RFC 6265 jar scoped to
// a single application origin. Expiry, path scoping and the Secure flag are
// enforced by the jar itself.
type CookieJarBackend struct {
	jar  http.CookieJar
	url  *url.URL
	opts CookieOptions
}

// NewCookieJarBackend creates a jar-backed store for the origin in rawURL.
// A Secure cookie can only be read back over https, so Secure with an http
// origin is rejected.
func NewCookieJarBackend(rawURL string, opts CookieOptions) (*CookieJarBackend, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("[NewCookieJarBackend] invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("[NewCookieJarBackend] unsupported scheme %q", u.Scheme)
	}
	opts = opts.normalize()
	if opts.Secure && u.Scheme != "https" {
		return nil, fmt.Errorf("[NewCookieJarBackend] secure cookies require an https origin")
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("[NewCookieJarBackend] cookiejar.New: %w", err)
	}

	scoped := *u
	scoped.Path = opts.Path
	return &CookieJarBackend{jar: jar, url: &scoped, opts: opts}, nil
}

func (b *CookieJarBackend) Get(key string) (string, bool, error) {
	for _, c := range b.jar.Cookies(b.url) {
		if c.Name != key {
			continue
		}
		v, err := url.QueryUnescape(c.Value)
		if err != nil {
			return "", false, fmt.Errorf("decode cookie %s: %w", key, err)
		}
		return v, true, nil
	}
	return "", false, nil
}

func (b *CookieJarBackend) Set(key, value string) error {
	b.jar.SetCookies(b.url, []*http.Cookie{b.cookie(key, url.QueryEscape(value), int(b.opts.MaxAge.Seconds()))})
	return nil
}

func (b *CookieJarBackend) Remove(key string) error {
	b.jar.SetCookies(b.url, []*http.Cookie{b.cookie(key, "", -1)})
	return nil
}

func (b *CookieJarBackend) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     b.opts.Path,
		MaxAge:   maxAge,
		Secure:   b.opts.Secure,
		SameSite: b.opts.SameSite,
	}
}
