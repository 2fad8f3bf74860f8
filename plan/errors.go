package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-modman/mod"
)

// ErrUnresolvableOrdering is matched by every *UnresolvableOrderingError.
var ErrUnresolvableOrdering = errors.New("unresolvable ordering")

// UnresolvableOrderingError reports a target that cannot be applied in any
// safe order. It indicates inconsistent input, not a user error.
type UnresolvableOrderingError struct {
	Mods   []mod.ID
	Reason string
}

func (e *UnresolvableOrderingError) Error() string {
	ids := make([]string, len(e.Mods))
	for i, id := range e.Mods {
		ids[i] = string(id)
	}
	return fmt.Sprintf("unresolvable ordering for %s: %s", strings.Join(ids, ", "), e.Reason)
}

func (e *UnresolvableOrderingError) Is(target error) bool { return target == ErrUnresolvableOrdering }
