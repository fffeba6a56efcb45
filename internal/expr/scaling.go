// internal/expr/scaling.go
package expr

import (
	"strings"
	"sync"
)

// ValidationValue is substituted for every free variable by Validate.
const ValidationValue = 1.0

// cache holds parsed trees keyed by exact source text.
type cache struct {
	mu    sync.Mutex
	trees map[string]*node
	value bool
	refs  bool
	funcs map[string]fnID
}

func (c *cache) get(src string) (*node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.trees[src]; ok {
		return n, nil
	}
	n, err := parse(src, c.value, c.refs, c.funcs)
	if err != nil {
		return nil, err
	}
	if c.trees == nil {
		c.trees = make(map[string]*node)
	}
	c.trees[src] = n
	return n, nil
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.trees)
}

func (c *cache) clear() {
	c.mu.Lock()
	c.trees = nil
	c.mu.Unlock()
}

// Scaling evaluates per-register scaling expressions over the single
// free variable `value`. Safe for concurrent use.
type Scaling struct {
	c cache
}

func NewScaling() *Scaling {
	return &Scaling{c: cache{value: true, funcs: scalingFuncs}}
}

// Evaluate applies src to value. An empty expression or plain `value`
// returns value unchanged.
func (s *Scaling) Evaluate(src string, value float64) (float64, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" || trimmed == "value" {
		return value, nil
	}
	n, err := s.c.get(src)
	if err != nil {
		return 0, err
	}
	return n.eval(&env{value: value})
}

// Validate parses src and evaluates it once with ValidationValue.
// The cache is not touched.
func (s *Scaling) Validate(src string) error {
	n, err := parse(src, true, false, scalingFuncs)
	if err != nil {
		return err
	}
	_, err = n.eval(&env{value: ValidationValue})
	return err
}

// Cached reports the number of parsed expressions held.
func (s *Scaling) Cached() int { return s.c.len() }

func (s *Scaling) ClearCache() { s.c.clear() }
