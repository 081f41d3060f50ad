// Package undo implements the command history: named stacks of executed
// commands with undo, redo, merge of consecutive compatible commands and
// composite frames grouping several commands into one step.
package undo

import (
	"fmt"
	"sync"

	"github.com/jacquetc/qleany/pkg/domain"
)

// Command is one reversible operation. Commands are pushed after their first
// execution; Redo must reproduce that execution exactly.
type Command interface {
	// Text is the display label shown in undo menus.
	Text() string

	// TypeID discriminates command types for merging. Two commands with
	// different type ids never merge.
	TypeID() string

	Undo() error
	Redo() error

	// CanMerge reports whether next can fold into this command.
	CanMerge(next Command) bool

	// Merge folds next into this command. Only called when CanMerge
	// returned true.
	Merge(next Command) error
}

// Composite groups commands into one history step. Undo runs the children
// in reverse order.
type Composite struct {
	label    string
	children []Command
}

// NewComposite creates an empty composite with a display label.
func NewComposite(label string) *Composite {
	return &Composite{label: label}
}

// Add appends a child command, merging it into the previous child when
// possible.
func (c *Composite) Add(cmd Command) error {
	if n := len(c.children); n > 0 {
		last := c.children[n-1]
		if last.TypeID() == cmd.TypeID() && last.CanMerge(cmd) {
			return last.Merge(cmd)
		}
	}
	c.children = append(c.children, cmd)
	return nil
}

// Len returns the number of child commands.
func (c *Composite) Len() int { return len(c.children) }

func (c *Composite) Text() string   { return c.label }
func (c *Composite) TypeID() string { return "composite" }

func (c *Composite) Undo() error {
	for i := len(c.children) - 1; i >= 0; i-- {
		if err := c.children[i].Undo(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Composite) Redo() error {
	for _, child := range c.children {
		if err := child.Redo(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Composite) CanMerge(Command) bool { return false }
func (c *Composite) Merge(Command) error   { return fmt.Errorf("composite commands do not merge") }

// stack is one undo/redo history.
type stack struct {
	undo []Command
	redo []Command
}

// DefaultStack is the stack active on a fresh manager.
const DefaultStack = "default"

// Manager routes commands to the active stack. All methods are safe for
// concurrent use.
type Manager struct {
	mu     sync.Mutex
	stacks map[string]*stack
	active string

	frame *Composite
	depth int
}

// NewManager creates a manager with the default stack active.
func NewManager() *Manager {
	return &Manager{
		stacks: map[string]*stack{DefaultStack: {}},
		active: DefaultStack,
	}
}

// SetActiveStack switches the active stack, creating it if needed. An open
// composite frame keeps collecting into the stack it was opened on.
func (m *Manager) SetActiveStack(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stacks[name]; !ok {
		m.stacks[name] = &stack{}
	}
	m.active = name
}

// ActiveStack returns the active stack name.
func (m *Manager) ActiveStack() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// BeginComposite opens a composite frame. Nested calls fold into the
// outermost frame; only the matching outermost EndComposite closes it.
func (m *Manager) BeginComposite(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.depth == 0 {
		m.frame = NewComposite(label)
	}
	m.depth++
}

// EndComposite closes one nesting level. Closing the outermost level pushes
// the collected frame as a single history step; an empty frame is dropped.
func (m *Manager) EndComposite() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.depth == 0 {
		return fmt.Errorf("%w: no open composite frame", domain.ErrValidationFailed)
	}
	m.depth--
	if m.depth > 0 {
		return nil
	}
	frame := m.frame
	m.frame = nil
	if frame.Len() == 0 {
		return nil
	}
	m.pushLocked(frame)
	return nil
}

// Push records an already-executed command on the active stack. The redo
// side is cleared; history never branches.
func (m *Manager) Push(cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frame != nil {
		return m.frame.Add(cmd)
	}
	m.pushLocked(cmd)
	return nil
}

func (m *Manager) pushLocked(cmd Command) {
	s := m.stacks[m.active]
	s.redo = nil

	if n := len(s.undo); n > 0 {
		last := s.undo[n-1]
		if last.TypeID() == cmd.TypeID() && last.CanMerge(cmd) {
			if err := last.Merge(cmd); err == nil {
				return
			}
		}
	}
	s.undo = append(s.undo, cmd)
}

// Undo reverts the newest command of the active stack and moves it to the
// redo side. An empty stack is a no-op success; a failing command leaves the
// history unchanged.
func (m *Manager) Undo() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stacks[m.active]
	n := len(s.undo)
	if n == 0 {
		return nil
	}
	cmd := s.undo[n-1]
	if err := cmd.Undo(); err != nil {
		return err
	}
	s.undo = s.undo[:n-1]
	s.redo = append(s.redo, cmd)
	return nil
}

// Redo replays the newest undone command of the active stack. An empty
// stack is a no-op success.
func (m *Manager) Redo() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stacks[m.active]
	n := len(s.redo)
	if n == 0 {
		return nil
	}
	cmd := s.redo[n-1]
	if err := cmd.Redo(); err != nil {
		return err
	}
	s.redo = s.redo[:n-1]
	s.undo = append(s.undo, cmd)
	return nil
}

// CanUndo reports whether the active stack has undoable history.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stacks[m.active].undo) > 0
}

// CanRedo reports whether the active stack has redoable history.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stacks[m.active].redo) > 0
}

// UndoText returns the label of the command Undo would revert, or "".
func (m *Manager) UndoText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stacks[m.active]
	if len(s.undo) == 0 {
		return ""
	}
	return s.undo[len(s.undo)-1].Text()
}

// RedoText returns the label of the command Redo would replay, or "".
func (m *Manager) RedoText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stacks[m.active]
	if len(s.redo) == 0 {
		return ""
	}
	return s.redo[len(s.redo)-1].Text()
}

// Clear wipes the active stack and drops any open composite frame.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stacks[m.active] = &stack{}
	m.frame = nil
	m.depth = 0
}

// ClearAll wipes every stack and drops any open composite frame.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.stacks {
		m.stacks[name] = &stack{}
	}
	m.frame = nil
	m.depth = 0
}
