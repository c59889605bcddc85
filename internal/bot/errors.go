// Package bot defines the command model (descriptors, context, responses)
// and the dispatcher that routes inbound commands to handlers.
//
// This file centralizes registry errors so command modules can check them
// with errors.Is.
package bot

import "errors"

var (
	// ErrNoTriggers is returned when a descriptor declares no usable trigger.
	ErrNoTriggers = errors.New("command has no triggers")

	// ErrNoHandler is returned when a descriptor has a nil handler.
	ErrNoHandler = errors.New("command has no handler")

	// ErrDuplicateTrigger is returned when a trigger is already registered
	// by another descriptor.
	ErrDuplicateTrigger = errors.New("trigger already registered")

	// ErrRegistrySealed is returned by Register after the dispatcher started.
	ErrRegistrySealed = errors.New("registry is sealed")
)
