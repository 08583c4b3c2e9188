package topology

import "fmt"

// findCycle performs a depth-first search over the connections graph and
// returns the first cycle found, reported as the minimal offending path
// "a -> b -> ... -> a". It returns ("", false) if the
// graph is acyclic.
func findCycle(instances map[string]Instance) (string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(instances))
	for name := range instances {
		color[name] = white
	}

	// Deterministic iteration order so error messages are stable.
	names := make([]string, 0, len(instances))
	for name := range instances {
		names = append(names, name)
	}
	sortStrings(names)

	var path []string
	var cyclePath []string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		path = append(path, name)

		conns := append([]string(nil), instances[name].Connections...)
		sortStrings(conns)
		for _, next := range conns {
			if _, ok := instances[next]; !ok {
				continue // missing-edge validation happens separately
			}
			switch color[next] {
			case gray:
				// Found a cycle: extract the suffix of path starting at next.
				start := indexOf(path, next)
				cyclePath = append(append([]string(nil), path[start:]...), next)
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}

		path = path[:len(path)-1]
		color[name] = black
		return false
	}

	for _, name := range names {
		if color[name] == white {
			if visit(name) {
				return formatCycle(cyclePath), true
			}
		}
	}
	return "", false
}

func formatCycle(path []string) string {
	out := ""
	for i, name := range path {
		if i > 0 {
			out += " -> "
		}
		out += name
	}
	return out
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func errCycle(path string) error {
	return &ConfigError{Message: fmt.Sprintf("Circular dependency detected: %s", path)}
}
