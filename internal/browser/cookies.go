package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/playwright-community/playwright-go"
)

// Cookie is a browser cookie as exported by common cookie-editor extensions.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// LoadCookies reads a JSON cookie file, or every *.json file when path is
// a directory.
func LoadCookies(path string) ([]Cookie, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return readCookieFile(path)
	}

	files, err := filepath.Glob(filepath.Join(path, "*.json"))
	if err != nil {
		return nil, err
	}
	var all []Cookie
	for _, f := range files {
		cookies, err := readCookieFile(f)
		if err != nil {
			return nil, err
		}
		all = append(all, cookies...)
	}
	return all, nil
}

func readCookieFile(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cookies, nil
}

// ToPlaywright converts the cookie for BrowserContext.AddCookies.
func (c Cookie) ToPlaywright() playwright.OptionalCookie {
	pwCookie := playwright.OptionalCookie{
		Name:   c.Name,
		Value:  c.Value,
		Domain: playwright.String(c.Domain),
		Path:   playwright.String(c.Path),
	}
	if c.Path == "" {
		pwCookie.Path = playwright.String("/")
	}
	if c.Expires > 0 {
		pwCookie.Expires = playwright.Float(c.Expires)
	}
	if c.HTTPOnly {
		pwCookie.HttpOnly = playwright.Bool(true)
	}
	if c.Secure {
		pwCookie.Secure = playwright.Bool(true)
	}

	switch c.SameSite {
	case "Lax", "lax":
		pwCookie.SameSite = playwright.SameSiteAttributeLax
	case "Strict", "strict":
		pwCookie.SameSite = playwright.SameSiteAttributeStrict
	case "None", "no_restriction":
		pwCookie.SameSite = playwright.SameSiteAttributeNone
	}

	return pwCookie
}
