package api

import (
	"fmt"
	"strings"
)

// Definition-time errors. All of them are raised during registration,
// graph build or run creation and prevent a run from ever being accepted;
// none of them may surface mid-execution.

// NotFoundError returns a new ErrNotFound.
func NotFoundError(what string) error {
	return ErrNotFound{what}
}

// ErrNotFound is the error returned when something requested could not be
// found. This error should not be retried.
type ErrNotFound struct {
	what string
}

func (err ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found", err.what)
}

// DuplicateNameError returns a new ErrDuplicateName.
func DuplicateNameError(what string) error {
	return ErrDuplicateName{what}
}

// ErrDuplicateName is the error returned when registering an item whose
// name is already taken.
type ErrDuplicateName struct {
	what string
}

func (err ErrDuplicateName) Error() string {
	return fmt.Sprintf("%s already exists", err.what)
}

// UndeclaredReferenceError returns a new ErrUndeclaredReference.
func UndeclaredReferenceError(owner, ref string) error {
	return ErrUndeclaredReference{owner, ref}
}

// ErrUndeclaredReference is the error returned when a template marker or a
// binding names something its owner never declared.
type ErrUndeclaredReference struct {
	owner string
	ref   string
}

func (err ErrUndeclaredReference) Error() string {
	return fmt.Sprintf("%s references undeclared %s", err.owner, err.ref)
}

// UnboundSlotError returns a new ErrUnboundSlot.
func UnboundSlotError(task, slot, reason string) error {
	return ErrUnboundSlot{task, slot, reason}
}

// ErrUnboundSlot is the error returned when a resource slot is left
// without a usable binding.
type ErrUnboundSlot struct {
	task   string
	slot   string
	reason string
}

func (err ErrUnboundSlot) Error() string {
	return fmt.Sprintf("slot %s of %s is not bound: %s", err.slot, err.task, err.reason)
}

// MissingParameterError returns a new ErrMissingParameter.
func MissingParameterError(owner, param string) error {
	return ErrMissingParameter{owner, param}
}

// ErrMissingParameter is the error returned when a parameter without a
// default is given no value.
type ErrMissingParameter struct {
	owner string
	param string
}

func (err ErrMissingParameter) Error() string {
	return fmt.Sprintf("parameter %s of %s has no default and no value", err.param, err.owner)
}

// KindMismatchError returns a new ErrKindMismatch.
func KindMismatchError(what string, want, got ResourceKind) error {
	return ErrKindMismatch{what, want, got}
}

// ErrKindMismatch is the error returned when a resource of one kind is
// bound where another kind is declared.
type ErrKindMismatch struct {
	what string
	want ResourceKind
	got  ResourceKind
}

func (err ErrKindMismatch) Error() string {
	return fmt.Sprintf("%s requires kind %s but got %s", err.what, err.want, err.got)
}

// CyclicDependencyError returns a new ErrCyclicDependency.
func CyclicDependencyError(members []string) error {
	return ErrCyclicDependency{members}
}

// ErrCyclicDependency is the error returned when the dependency graph of a
// pipeline is not acyclic. Members lists the task names involved.
type ErrCyclicDependency struct {
	members []string
}

// Members returns the names of the tasks involved in the cycle.
func (err ErrCyclicDependency) Members() []string {
	return err.members
}

func (err ErrCyclicDependency) Error() string {
	return fmt.Sprintf("pipeline contains a dependency cycle involving [%s]", strings.Join(err.members, ", "))
}

// UnresolvedReferenceError returns a new ErrUnresolvedReference.
func UnresolvedReferenceError(ref string) error {
	return ErrUnresolvedReference{ref}
}

// ErrUnresolvedReference is the error returned when a template marker has
// no entry in its binding context.
type ErrUnresolvedReference struct {
	ref string
}

func (err ErrUnresolvedReference) Error() string {
	return fmt.Sprintf("template reference ${%s} cannot be resolved", err.ref)
}
