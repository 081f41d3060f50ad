package usecase

import (
	"fmt"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/repository"
	"github.com/jacquetc/qleany/pkg/undo"
	"github.com/jacquetc/qleany/pkg/uow"
)

// createCommand undoes a create by cascading the created subtree away and
// redoes it by restoring the captured rows with their original ids.
type createCommand struct {
	factory *uow.Factory
	label   string
	capture *repository.Subtree
}

func (c *createCommand) Text() string   { return c.label }
func (c *createCommand) TypeID() string { return "create/" + string(c.capture.RootKind()) }

func (c *createCommand) Undo() error {
	return c.factory.Write(func(set *repository.Set) error {
		return set.DeleteAny(c.capture.RootKind(), c.capture.RootID())
	})
}

func (c *createCommand) Redo() error {
	return c.factory.Write(func(set *repository.Set) error {
		return c.capture.Restore(set)
	})
}

func (c *createCommand) CanMerge(undo.Command) bool { return false }
func (c *createCommand) Merge(undo.Command) error {
	return fmt.Errorf("%w: create commands do not merge", domain.ErrValidationFailed)
}

// removeCommand is the mirror: undo restores, redo deletes again.
type removeCommand struct {
	factory *uow.Factory
	label   string
	capture *repository.Subtree
}

func (c *removeCommand) Text() string   { return c.label }
func (c *removeCommand) TypeID() string { return "remove/" + string(c.capture.RootKind()) }

func (c *removeCommand) Undo() error {
	return c.factory.Write(func(set *repository.Set) error {
		return c.capture.Restore(set)
	})
}

func (c *removeCommand) Redo() error {
	return c.factory.Write(func(set *repository.Set) error {
		return set.DeleteAny(c.capture.RootKind(), c.capture.RootID())
	})
}

func (c *removeCommand) CanMerge(undo.Command) bool { return false }
func (c *removeCommand) Merge(undo.Command) error {
	return fmt.Errorf("%w: remove commands do not merge", domain.ErrValidationFailed)
}

// updateCommand keeps before and after images of one row. Consecutive
// updates of the same row merge into one history step.
type updateCommand struct {
	factory *uow.Factory
	label   string
	kind    domain.Kind
	id      domain.EntityID
	before  domain.Persistable
	after   domain.Persistable
}

func (c *updateCommand) Text() string { return c.label }
func (c *updateCommand) TypeID() string {
	return fmt.Sprintf("update/%s/%d", c.kind, c.id)
}

func (c *updateCommand) Undo() error {
	return c.factory.Write(func(set *repository.Set) error {
		return set.UpdateAny(c.before)
	})
}

func (c *updateCommand) Redo() error {
	return c.factory.Write(func(set *repository.Set) error {
		return set.UpdateAny(c.after)
	})
}

func (c *updateCommand) CanMerge(next undo.Command) bool {
	other, ok := next.(*updateCommand)
	return ok && other.kind == c.kind && other.id == c.id
}

func (c *updateCommand) Merge(next undo.Command) error {
	other, ok := next.(*updateCommand)
	if !ok {
		return fmt.Errorf("%w: incompatible merge", domain.ErrValidationFailed)
	}
	c.after = other.after
	c.label = other.label
	return nil
}
