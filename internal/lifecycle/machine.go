// Package lifecycle encodes the legal state transitions of a single module.
// It is a pure lookup table: the registry consults it before every state
// change, and everything else (locking, events, hook invocation) lives in
// the registry and manager.
package lifecycle

import (
	"conductor/internal/api"
)

// transitions maps each state to the set of states reachable from it.
// The ERROR state is special-cased: any state may fail into ERROR, and
// recovery out of ERROR is validated by Reset, not by this table.
var transitions = map[api.ModuleState]map[api.ModuleState]bool{
	api.StateNotInstalled: {
		api.StateLoaded: true, // load
	},
	api.StateLoaded: {
		api.StateInstalled:    true, // install
		api.StateNotInstalled: true, // unload
	},
	api.StateInstalled: {
		api.StateStarted: true, // start
		api.StateLoaded:  true, // uninstall
	},
	api.StateStarted: {
		api.StateStopped: true, // stop
	},
	api.StateStopped: {
		api.StateStarted: true, // restart
		api.StateLoaded:  true, // uninstall
	},
	api.StateError: {},
}

// CanTransition reports whether moving from one state to another is legal.
// Failing into ERROR is always allowed.
func CanTransition(from, to api.ModuleState) bool {
	if to == api.StateError {
		return true
	}
	return transitions[from][to]
}

// Validate returns nil when the transition is legal and a TransitionError
// naming the module otherwise.
func Validate(name string, from, to api.ModuleState) error {
	if !CanTransition(from, to) {
		return api.NewTransitionError(name, from, to)
	}
	return nil
}

// ResetTarget returns the state a module in ERROR recovers to: its last
// stable state when one is recorded, LOADED otherwise.
func ResetTarget(lastStable api.ModuleState) api.ModuleState {
	if lastStable != "" && lastStable != api.StateError {
		return lastStable
	}
	return api.StateLoaded
}

// IsStable reports whether a state can serve as a reset target.
func IsStable(state api.ModuleState) bool {
	switch state {
	case api.StateNotInstalled, api.StateLoaded, api.StateInstalled,
		api.StateStarted, api.StateStopped:
		return true
	default:
		return false
	}
}
