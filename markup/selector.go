package markup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
)

// ValidateSelectors compiles every selector so that malformed input is
// rejected before any browser work. Names must be non-empty.
func ValidateSelectors(selectors map[string]string) error {
	names := make([]string, 0, len(selectors))
	for name := range selectors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("selector name must not be empty")
		}
		sel := selectors[name]
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("selector %q is empty", name)
		}
		if _, err := cascadia.ParseGroup(sel); err != nil {
			return fmt.Errorf("selector %q is invalid: %v", name, err)
		}
	}
	return nil
}
