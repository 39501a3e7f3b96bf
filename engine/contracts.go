package engine

import "github.com/snowdamiz/lmlang/propcheck"

// PropertyTest runs property_test (spec.md §4.6/§6) against a loaded
// program's current graph.
func (e *Engine) PropertyTest(program string, cfg propcheck.Config) (propcheck.Report, error) {
	s, err := e.sessionFor(program)
	if err != nil {
		return propcheck.Report{}, err
	}
	s.mu.Lock()
	p := s.program
	s.mu.Unlock()
	return propcheck.Run(p, cfg)
}
