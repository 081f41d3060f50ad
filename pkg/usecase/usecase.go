// Package usecase implements the command layer: one object per operation,
// validating its input, running against a unit of work and recording an
// undoable command on success. Read operations never touch the history.
package usecase

import (
	"fmt"
	"unicode"

	"go.uber.org/zap"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/undo"
	"github.com/jacquetc/qleany/pkg/uow"
)

// Deps carries the collaborators every use case needs. History may be nil,
// in which case mutations are not undoable (manifest import, tooling).
type Deps struct {
	Factory *uow.Factory
	History *undo.Manager
	Log     *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

// validateName accepts non-empty identifiers: a letter or underscore
// followed by letters, digits or underscores.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", domain.ErrValidationFailed)
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return fmt.Errorf("%w: name %q is not a valid identifier", domain.ErrValidationFailed, name)
	}
	return nil
}

// push records an executed command when a history is configured.
func (d Deps) push(cmd undo.Command) error {
	if d.History == nil {
		return nil
	}
	return d.History.Push(cmd)
}
