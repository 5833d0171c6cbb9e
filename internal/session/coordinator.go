// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session coordinates enrichment runs with project navigation.
//
// A Session is bound to one project when it begins and carries the epoch it
// was started in. Navigating to another project (or home) aborts the running
// session and advances the epoch, which revokes its write authority: every
// commit re-checks ownership under the coordinator lock, so a response that
// arrives after navigation is discarded instead of landing in the wrong
// project's records.
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// State is the lifecycle state of a session.
type State string

const (
	Idle      State = "idle"
	Running   State = "running"
	Completed State = "completed"
	Aborted   State = "aborted"
	Errored   State = "errored"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Completed || s == Aborted || s == Errored
}

var (
	// ErrNoProject is returned by Begin without a project.
	ErrNoProject = errors.New("session requires a project")
	// ErrSessionRunning is returned by Begin while a session for the same
	// project is still running.
	ErrSessionRunning = errors.New("an enrichment session is already running")
	// ErrStale is returned by Commit when the session no longer owns the
	// active project.
	ErrStale = errors.New("session no longer owns the active project")
)

// Session is one enrichment run.
type Session struct {
	id        string
	projectID string
	epoch     uint64

	aborted atomic.Bool

	mu    sync.Mutex
	state State
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// ProjectID returns the project the session is bound to.
func (s *Session) ProjectID() string { return s.projectID }

// Epoch returns the coordinator epoch the session was started in.
func (s *Session) Epoch() uint64 { return s.epoch }

// Aborted reports whether the abort flag is set.
func (s *Session) Aborted() bool { return s.aborted.Load() }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = st
	return true
}

// Coordinator tracks the active project and the single running session.
type Coordinator struct {
	mu      sync.Mutex
	epoch   uint64
	active  string
	current *Session
}

// New returns a coordinator with no active project.
func New() *Coordinator {
	return &Coordinator{}
}

// Active returns the active project id, or "" at home.
func (c *Coordinator) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Current returns the running session, or nil.
func (c *Coordinator) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// IsRunning reports whether a session bound to projectID is running.
func (c *Coordinator) IsRunning(projectID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.current.projectID == projectID
}

// Navigate makes projectID the active project ("" for home). A running
// session is aborted and its running indicator cleared immediately, even
// when projectID is the session's own project: a reload replaces the
// record set the session was writing to.
func (c *Coordinator) Navigate(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortLocked()
	c.epoch++
	c.active = projectID
}

// Abort stops the running session without changing the active project.
func (c *Coordinator) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortLocked()
}

func (c *Coordinator) abortLocked() {
	if c.current == nil {
		return
	}
	c.current.aborted.Store(true)
	c.current = nil
}

// Begin starts a session bound to projectID, which must be the active
// project. A caller that read the project before a navigation gets
// ErrStale and the navigation stands.
func (c *Coordinator) Begin(projectID string) (*Session, error) {
	if projectID == "" {
		return nil, ErrNoProject
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != projectID {
		return nil, fmt.Errorf("%w: project %s is not active", ErrStale, projectID)
	}
	if c.current != nil {
		return nil, fmt.Errorf("%w: project %s", ErrSessionRunning, projectID)
	}
	c.epoch++

	s := &Session{
		id:        uuid.NewString(),
		projectID: projectID,
		epoch:     c.epoch,
		state:     Running,
	}
	c.current = s
	return s, nil
}

// Owns reports whether s may still write: it is the current session, it
// has not been aborted, and its project is the active one.
func (c *Coordinator) Owns(s *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ownsLocked(s)
}

func (c *Coordinator) ownsLocked(s *Session) bool {
	return s != nil &&
		!s.aborted.Load() &&
		c.current == s &&
		s.epoch == c.epoch &&
		s.projectID == c.active
}

// Commit runs fn while holding the coordinator lock, after verifying that
// s owns the active project. Navigation cannot interleave with fn, so a
// commit either lands entirely in the session's project or not at all.
// fn must not call back into the coordinator.
func (c *Coordinator) Commit(s *Session, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ownsLocked(s) {
		return ErrStale
	}
	return fn()
}

// Finish moves s to a terminal state. The running indicator is cleared
// only if s is still the current session. Finishing an aborted session
// always records Aborted.
func (c *Coordinator) Finish(s *Session, st State) {
	if s == nil {
		return
	}
	if s.Aborted() {
		st = Aborted
	}
	s.setState(st)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == s {
		c.current = nil
	}
}
