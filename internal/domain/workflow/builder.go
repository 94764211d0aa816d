package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether a configured transition may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects transition rules and builds machines from them
type StateMachineBuilder interface {
	// Configure returns the rule set for transitions leaving state
	Configure(state State) StateConfiguration

	// Build creates an independent machine positioned at initialState
	Build(initialState State) StateMachine
}

// StateConfiguration adds transitions leaving one state
type StateConfiguration interface {
	// Permit allows trigger to move to toState unconditionally
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf allows trigger to move to toState when guard passes
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

type transition struct {
	toState State
	guard   GuardFunc
}

type stateConfig struct {
	transitions map[Trigger][]transition
}

type stateMachineBuilder struct {
	configs map[State]*stateConfig
}

// NewBuilder creates an empty builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{configs: make(map[State]*stateConfig)}
}

func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	cfg, ok := b.configs[state]
	if !ok {
		cfg = &stateConfig{transitions: make(map[Trigger][]transition)}
		b.configs[state] = cfg
	}
	return cfg
}

func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	// Copy so later Configure calls cannot change machines already built.
	table := make(map[State]map[Trigger][]transition, len(b.configs))
	for state, cfg := range b.configs {
		byTrigger := make(map[Trigger][]transition, len(cfg.transitions))
		for trigger, ts := range cfg.transitions {
			byTrigger[trigger] = append([]transition(nil), ts...)
		}
		table[state] = byTrigger
	}

	return &stateMachine{current: initialState, table: table}
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}

	c.transitions[trigger] = append(c.transitions[trigger], transition{toState: toState, guard: guard})
	return c
}
