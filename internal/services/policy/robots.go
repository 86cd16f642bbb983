package policy

import (
	"bufio"
	"strings"
	"sync"
	"time"
)

// RobotsRules holds the Disallow rules that apply to our crawler.
type RobotsRules struct {
	Disallow []string
}

// Allows reports whether the path is permitted by the parsed rules.
// A bare "Disallow:" line (empty value) allows everything; "Disallow: /"
// blocks the whole site.
func (r *RobotsRules) Allows(path string) bool {
	if r == nil {
		return true
	}
	if path == "" {
		path = "/"
	}
	for _, rule := range r.Disallow {
		if rule == "" {
			continue
		}
		if strings.HasPrefix(path, rule) {
			return false
		}
	}
	return true
}

// ParseRobots extracts Disallow rules scoped to User-agent: * or the
// crawler's own agent name. When the file declares no relevant
// user-agent block the result is allow-all: robots ambiguity fails open,
// only an explicit wildcard Disallow fails closed.
func ParseRobots(body, agentName string) *RobotsRules {
	rules := &RobotsRules{}
	agentLower := strings.ToLower(agentName)

	scanner := bufio.NewScanner(strings.NewReader(body))
	applies := false
	sawRelevantAgent := false

	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			agent := strings.ToLower(value)
			applies = agent == "*" || (agentLower != "" && strings.Contains(agentLower, agent))
			if applies {
				sawRelevantAgent = true
			}
		case "disallow":
			if applies && value != "" {
				rules.Disallow = append(rules.Disallow, value)
			}
		}
	}

	if !sawRelevantAgent {
		return &RobotsRules{} // no relevant block: allow all
	}
	return rules
}

// RobotsCache caches parsed robots rules per domain for the lifetime of
// a crawl run. A cold cache is a performance concern only, never a
// correctness one.
type RobotsCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]robotsEntry
}

type robotsEntry struct {
	rules   *RobotsRules
	expires time.Time
}

// NewRobotsCache creates a robots cache with the given TTL.
func NewRobotsCache(ttl time.Duration) *RobotsCache {
	return &RobotsCache{
		ttl:     ttl,
		entries: make(map[string]robotsEntry),
	}
}

// Get returns the cached rules for a domain, or nil when absent/expired.
func (c *RobotsCache) Get(domain string) *RobotsRules {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[domain]
	if !ok || time.Now().After(entry.expires) {
		return nil
	}
	return entry.rules
}

// Set stores rules for a domain.
func (c *RobotsCache) Set(domain string, rules *RobotsRules) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain] = robotsEntry{rules: rules, expires: time.Now().Add(c.ttl)}
}
