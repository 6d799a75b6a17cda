// Package all assembles the registry of every built-in modelling code.
package all

import (
	"github.com/roach88/gfstore/internal/backend"
	"github.com/roach88/gfstore/internal/backend/ahfull"
	"github.com/roach88/gfstore/internal/backend/qseis"
	"github.com/roach88/gfstore/internal/backend/qseis2d"
)

// Registry returns a registry with the qseis, qseis2d and ahfull families.
func Registry() *backend.Registry {
	return backend.NewRegistry(
		ahfull.Family{},
		qseis.Family{},
		qseis2d.Family{},
	)
}
