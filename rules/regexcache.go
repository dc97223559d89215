// Package rules implements the Rule Engine (§4.2): the indexed-scan
// matcher that evaluates incoming Data against the Conditions working
// memory indexes by dataId, joins per-(trigger,mode) evaluation tuples,
// and advances each tuple's Dampening.
package rules

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// regexCache compiles and caches STRING.MATCHES patterns, grounded on the
// teacher's expression/regex_cache.go. The teacher backs its cache with
// pkg/cache's generic LRU; that package is out of scope here (this engine
// has no other consumer for a generic eviction-notified cache), so this
// is a plain mutex-guarded map — patterns are a bounded, low-cardinality
// set (one per STRING condition definition) and never need eviction.
// The ReDoS complexity check is preserved verbatim in spirit: it is a
// security control, not a style choice.
type regexCache struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

func newRegexCache() *regexCache {
	return &regexCache{cache: make(map[string]*regexp.Regexp)}
}

func (c *regexCache) compile(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.cache[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	if err := validateRegexComplexity(pattern); err != nil {
		return nil, err
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}

	c.mu.Lock()
	c.cache[pattern] = re
	c.mu.Unlock()
	return re, nil
}

// validateRegexComplexity rejects patterns likely to cause catastrophic
// backtracking before they are ever compiled, since STRING.MATCHES
// patterns arrive from trigger definitions an operator may not control.
func validateRegexComplexity(pattern string) error {
	if len(pattern) > 500 {
		return fmt.Errorf("regex pattern too long (max 500 chars): %d chars", len(pattern))
	}

	dangerousFragments := []string{
		`(\w+)*\w`,
		`(\w*)+`,
		`(a+)+`,
		`([a-zA-Z]+)*`,
		`(\d+)*\d`,
		`(.*)*`,
		`(.+)+`,
		`(\s+)*\s`,
		`([^,]+)*[^,]`,
	}
	for _, fragment := range dangerousFragments {
		if strings.Contains(pattern, fragment) {
			return fmt.Errorf("regex pattern contains potentially dangerous construct: nested quantifiers that may cause exponential backtracking")
		}
	}

	if strings.Contains(pattern, "{") {
		for i := 1000; i <= 9999; i++ {
			if strings.Contains(pattern, fmt.Sprintf("{%d", i)) {
				return fmt.Errorf("regex pattern contains excessive repetition count (>= 1000)")
			}
		}
	}

	if strings.Count(pattern, "(") > 20 {
		return fmt.Errorf("regex pattern has too many capture groups (max 20)")
	}

	nestLevel, maxNest := 0, 0
	for _, ch := range pattern {
		switch ch {
		case '(':
			nestLevel++
			if nestLevel > maxNest {
				maxNest = nestLevel
			}
		case ')':
			nestLevel--
		}
	}
	if maxNest > 5 {
		return fmt.Errorf("regex pattern has excessive nesting depth (max 5 levels)")
	}

	return nil
}
