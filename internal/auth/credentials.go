package auth

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
)

// Keys used in the token store.
const (
	keyAccess  = "access"
	keyRefresh = "refresh"
)

// TokenStore abstracts where credentials live while the process runs.
type TokenStore interface {
	Store(key, value string) error
	Retrieve(key string) (string, error)
	Delete(key string) error
	Clear() error
	Exists(key string) bool
}

// InMemoryTokenStore keeps credentials in process memory only.
type InMemoryTokenStore struct {
	data  map[string]string
	mutex sync.RWMutex
}

// NewInMemoryTokenStore creates an empty store.
func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{data: make(map[string]string)}
}

// Store saves a value under key.
func (s *InMemoryTokenStore) Store(key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data[key] = value
	return nil
}

// Retrieve returns the value for key or an error when absent.
func (s *InMemoryTokenStore) Retrieve(key string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found", key)
	}
	return value, nil
}

// Delete removes key.
func (s *InMemoryTokenStore) Delete(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.data, key)
	return nil
}

// Clear zeroes and removes all values.
func (s *InMemoryTokenStore) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data = make(map[string]string)
	return nil
}

// Exists reports whether key holds a non-empty value.
func (s *InMemoryTokenStore) Exists(key string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.data[key] != ""
}

// ClearableJar is a cookie jar that can be emptied in place. The HTTP client
// and the socket dialer hold the same jar, so logout must reset it without
// swapping the pointer they captured.
type ClearableJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

// NewClearableJar creates an empty jar.
func NewClearableJar() *ClearableJar {
	jar, _ := cookiejar.New(nil)
	return &ClearableJar{jar: jar}
}

// SetCookies implements http.CookieJar.
func (c *ClearableJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.jar.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (c *ClearableJar) Cookies(u *url.URL) []*http.Cookie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jar.Cookies(u)
}

// Clear drops every cookie.
func (c *ClearableJar) Clear() {
	jar, _ := cookiejar.New(nil)
	c.mu.Lock()
	c.jar = jar
	c.mu.Unlock()
}

// Cookie returns the value of the named cookie for u, if present.
func (c *ClearableJar) Cookie(u *url.URL, name string) (string, bool) {
	for _, cookie := range c.Cookies(u) {
		if cookie.Name == name {
			return cookie.Value, true
		}
	}
	return "", false
}
