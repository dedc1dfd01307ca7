package parser

import (
	"fmt"
	"regexp"
	"sync"
)

// RegexCache compiles patterns once. Selector tables may carry patterns as
// configuration, so they cannot all be package-level vars.
type RegexCache struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

// NewRegexCache creates an empty cache.
func NewRegexCache() *RegexCache {
	return &RegexCache{cache: make(map[string]*regexp.Regexp)}
}

// Compile returns a cached compiled regex or compiles and caches a new one.
func (c *RegexCache) Compile(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.cache[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}

	c.mu.Lock()
	c.cache[pattern] = re
	c.mu.Unlock()
	return re, nil
}

// Find returns the first match of pattern in body, or its first capture
// group when the pattern has one.
func (c *RegexCache) Find(pattern, body string) (string, bool) {
	values, err := c.FindAll(pattern, body, 1)
	if err != nil || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// FindAll returns up to n matches (n < 0 for all). Named groups, then the
// first unnamed group, then the whole match are returned per hit.
func (c *RegexCache) FindAll(pattern, body string, n int) ([]string, error) {
	re, err := c.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return extractRegex(re, body, n), nil
}

// extractRegex applies a compiled regex to the body and returns matches.
func extractRegex(re *regexp.Regexp, body string, n int) []string {
	var values []string

	// Check for named capture groups
	names := re.SubexpNames()
	hasNamedGroups := false
	for _, name := range names {
		if name != "" {
			hasNamedGroups = true
			break
		}
	}

	if hasNamedGroups {
		matches := re.FindAllStringSubmatch(body, n)
		for _, match := range matches {
			for i, name := range names {
				if name != "" && i < len(match) && match[i] != "" {
					values = append(values, match[i])
				}
			}
		}
	} else if re.NumSubexp() > 0 {
		matches := re.FindAllStringSubmatch(body, n)
		for _, match := range matches {
			if len(match) > 1 {
				values = append(values, match[1])
			}
		}
	} else {
		values = re.FindAllString(body, n)
	}

	return values
}
