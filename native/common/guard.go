package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module's mutating flows are halted.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the named module is paused. Engines call
// it at the top of every mutating operation.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Pauses is a static PauseView driven by configuration.
type Pauses struct {
	Position bool
	Auction  bool
}

// IsPaused implements the PauseView interface.
func (p Pauses) IsPaused(module string) bool {
	switch module {
	case "position":
		return p.Position
	case "auction":
		return p.Auction
	default:
		return false
	}
}
