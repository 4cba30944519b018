package mapper

import (
	"fmt"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// unmappedError reports a canonical/native value with no entry in either the
// default or custom tables, wrapped as domain.KindMapping by the caller.
type unmappedError struct {
	system domain.System
	value  string
}

func (e *unmappedError) Error() string {
	return fmt.Sprintf("mapper: no mapping for %q on system %s", e.value, e.system)
}
