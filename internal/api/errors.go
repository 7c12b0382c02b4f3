package api

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a module name unknown to the registry or source.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("module %s not found", e.Name)
}

// NewNotFoundError creates a NotFoundError for the given module name.
func NewNotFoundError(name string) *NotFoundError {
	return &NotFoundError{Name: name}
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// DuplicateError indicates a load attempt for an already-registered name.
type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("module %s already registered", e.Name)
}

// NewDuplicateError creates a DuplicateError for the given module name.
func NewDuplicateError(name string) *DuplicateError {
	return &DuplicateError{Name: name}
}

// IsDuplicate checks if an error is a DuplicateError.
func IsDuplicate(err error) bool {
	var duplicateErr *DuplicateError
	return errors.As(err, &duplicateErr)
}

// LoadError indicates the factory raised or metadata validation failed.
type LoadError struct {
	Name  string
	Cause error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load module %s: %v", e.Name, e.Cause)
	}
	return fmt.Sprintf("failed to load module %s", e.Name)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// NewLoadError creates a LoadError wrapping the underlying cause.
func NewLoadError(name string, cause error) *LoadError {
	return &LoadError{Name: name, Cause: cause}
}

// IsLoadError checks if an error is a LoadError.
func IsLoadError(err error) bool {
	var loadErr *LoadError
	return errors.As(err, &loadErr)
}

// ConfigError indicates config validation rejected a configuration mapping.
type ConfigError struct {
	Name    string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("invalid config for module %s: %s", e.Name, e.Message)
	}
	return fmt.Sprintf("invalid config for module %s", e.Name)
}

// NewConfigError creates a ConfigError for the given module.
func NewConfigError(name, message string) *ConfigError {
	return &ConfigError{Name: name, Message: message}
}

// IsConfigError checks if an error is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// TransitionError indicates a lifecycle operation called from an incompatible
// state.
type TransitionError struct {
	Name string
	From ModuleState
	To   ModuleState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("module %s: illegal transition %s -> %s", e.Name, e.From, e.To)
}

// NewTransitionError creates a TransitionError for the given move.
func NewTransitionError(name string, from, to ModuleState) *TransitionError {
	return &TransitionError{Name: name, From: from, To: to}
}

// IsTransitionError checks if an error is a TransitionError.
func IsTransitionError(err error) bool {
	var transitionErr *TransitionError
	return errors.As(err, &transitionErr)
}

// CycleError indicates the dependency graph cannot be linearized.
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency detected: %v", e.Cycles)
}

// NewCycleError creates a CycleError carrying the detected cycles.
func NewCycleError(cycles [][]string) *CycleError {
	return &CycleError{Cycles: cycles}
}

// IsCycleError checks if an error is a CycleError.
func IsCycleError(err error) bool {
	var cycleErr *CycleError
	return errors.As(err, &cycleErr)
}

// DependencyNotStartedError indicates a start attempted before a required
// dependency was started.
type DependencyNotStartedError struct {
	Name       string
	Dependency string
}

func (e *DependencyNotStartedError) Error() string {
	return fmt.Sprintf("module %s: required dependency %s is not started", e.Name, e.Dependency)
}

// NewDependencyNotStartedError creates a DependencyNotStartedError.
func NewDependencyNotStartedError(name, dependency string) *DependencyNotStartedError {
	return &DependencyNotStartedError{Name: name, Dependency: dependency}
}

// IsDependencyNotStarted checks if an error is a DependencyNotStartedError.
func IsDependencyNotStarted(err error) bool {
	var depErr *DependencyNotStartedError
	return errors.As(err, &depErr)
}

// DependentRunningError indicates a stop or uninstall attempted while a
// started dependent exists and cascading was not requested.
type DependentRunningError struct {
	Name      string
	Dependent string
}

func (e *DependentRunningError) Error() string {
	return fmt.Sprintf("module %s: dependent %s is still running", e.Name, e.Dependent)
}

// NewDependentRunningError creates a DependentRunningError.
func NewDependentRunningError(name, dependent string) *DependentRunningError {
	return &DependentRunningError{Name: name, Dependent: dependent}
}

// IsDependentRunning checks if an error is a DependentRunningError.
func IsDependentRunning(err error) bool {
	var depErr *DependentRunningError
	return errors.As(err, &depErr)
}

// HookError indicates a user lifecycle hook failed.
type HookError struct {
	Name  string
	Hook  string
	Cause error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("module %s: %s hook failed: %v", e.Name, e.Hook, e.Cause)
}

func (e *HookError) Unwrap() error { return e.Cause }

// NewHookError creates a HookError wrapping the hook failure.
func NewHookError(name, hook string, cause error) *HookError {
	return &HookError{Name: name, Hook: hook, Cause: cause}
}

// IsHookError checks if an error is a HookError.
func IsHookError(err error) bool {
	var hookErr *HookError
	return errors.As(err, &hookErr)
}

// TimeoutError indicates a lifecycle hook exceeded its deadline.
type TimeoutError struct {
	Name string
	Hook string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("module %s: %s hook timed out", e.Name, e.Hook)
}

// NewTimeoutError creates a TimeoutError for the given hook.
func NewTimeoutError(name, hook string) *TimeoutError {
	return &TimeoutError{Name: name, Hook: hook}
}

// IsTimeout checks if an error is a TimeoutError.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}
