package config

// Predicate decides whether a node definition belongs in a graph built
// with a given configuration. It matches the When field on node
// definitions, so predicates built here can be assigned directly.
type Predicate func(config map[string]any) bool

// KeyEquals matches configs where key holds exactly want.
func KeyEquals(key string, want any) Predicate {
	return func(config map[string]any) bool {
		v, ok := config[key]
		return ok && v == want
	}
}

// KeyPresent matches configs where key is set, whatever the value.
func KeyPresent(key string) Predicate {
	return func(config map[string]any) bool {
		_, ok := config[key]
		return ok
	}
}

// KeyAbsent matches configs where key is not set.
func KeyAbsent(key string) Predicate {
	return func(config map[string]any) bool {
		_, ok := config[key]
		return !ok
	}
}

// All matches configs satisfying every given predicate.
func All(preds ...Predicate) Predicate {
	return func(config map[string]any) bool {
		for _, p := range preds {
			if !p(config) {
				return false
			}
		}
		return true
	}
}

// Any matches configs satisfying at least one given predicate.
func Any(preds ...Predicate) Predicate {
	return func(config map[string]any) bool {
		for _, p := range preds {
			if p(config) {
				return true
			}
		}
		return false
	}
}
