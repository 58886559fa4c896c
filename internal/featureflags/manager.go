// Package featureflags evaluates FEATURE_FLAGS entries such as
// "free_job_posts=off,wallet_login=on,new_feed=25%".
package featureflags

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
)

// Flags consulted by the service.
const (
	// FreeJobPosts lifts the job posting payment gate.
	FreeJobPosts = "free_job_posts"
	// WalletLogin enables wallet nonce sign-in and registration.
	WalletLogin = "wallet_login"
)

// ErrInvalidValue is returned by Set for values Enabled cannot evaluate.
var ErrInvalidValue = errors.New("flag value must be on, off, true, false, 1, 0 or N%")

// Manager holds flag values; it is safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]string
}

// NewManager parses a comma-separated key=value list. Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		k, v = normalize(k), normalize(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return &Manager{flags: out}
}

// Enabled evaluates a flag for userID. Percent rollouts are deterministic per user and
// never include anonymous callers (userID 0).
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	value, ok := m.flags[normalize(name)]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	on, pct, err := parseValue(value)
	if err != nil {
		return false
	}
	if pct < 0 {
		return on
	}
	switch {
	case pct == 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		return false
	}
	return rolloutBucket(name, userID) < pct
}

// Set changes one flag at runtime.
func (m *Manager) Set(name, value string) error {
	name, value = normalize(name), normalize(value)
	if name == "" {
		return errors.New("flag name is required")
	}
	if _, _, err := parseValue(value); err != nil {
		return err
	}
	m.mu.Lock()
	m.flags[name] = value
	m.mu.Unlock()
	return nil
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	raw := m.Raw()
	out := make(map[string]bool, len(raw))
	for name := range raw {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

// parseValue returns (on, -1) for boolean values and (false, pct) for rollouts.
func parseValue(value string) (bool, int, error) {
	switch value {
	case "on", "true", "1":
		return true, -1, nil
	case "off", "false", "0":
		return false, -1, nil
	}
	if pctRaw, ok := strings.CutSuffix(value, "%"); ok {
		pct, err := strconv.Atoi(pctRaw)
		if err != nil || pct < 0 {
			return false, 0, ErrInvalidValue
		}
		return false, pct, nil
	}
	return false, 0, ErrInvalidValue
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
