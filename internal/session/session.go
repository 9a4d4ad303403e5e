// Package session keeps the per-acquisition sample store: one growing
// series per sensor label, lengths aligned across labels at all times.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrLabelMismatch  = errors.New("block labels do not match session labels")
	ErrRaggedBlock    = errors.New("block series lengths are not aligned")
	ErrUnknownSession = errors.New("unknown session")
)

// Stamp formats a session start time the way session files are named.
func Stamp(t time.Time) string {
	return t.Format("02-01-2006-150405")
}

// Block is one converted read: a short slice of samples per label, all the
// same length, in session label order.
type Block struct {
	Stamp  string
	Labels []string
	Values [][]float64
	// Offset is the index of the block's first sample within the session.
	Offset int
	At     time.Time
}

// Samples returns the number of samples per label in the block.
func (b *Block) Samples() int {
	if len(b.Values) == 0 {
		return 0
	}
	return len(b.Values[0])
}

// Session is the in-memory store for one acquisition run. Appends come
// from the acquisition loop while the HTTP API reads snapshots, so access
// is guarded.
type Session struct {
	mu        sync.RWMutex
	stamp     string
	rate      int
	labels    []string
	series    [][]float64
	startedAt time.Time
	endedAt   time.Time
}

// New creates an empty session for the given sensor labels.
func New(stamp string, rate int, labels []string) *Session {
	return &Session{
		stamp:     stamp,
		rate:      rate,
		labels:    append([]string(nil), labels...),
		series:    make([][]float64, len(labels)),
		startedAt: time.Now(),
	}
}

// Append adds one converted block, one slice per label in session order.
// All slices must have equal length so the series stay aligned.
func (s *Session) Append(values [][]float64) (*Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(values) != len(s.labels) {
		return nil, fmt.Errorf("%w: got %d series, session has %d labels", ErrLabelMismatch, len(values), len(s.labels))
	}
	n := -1
	for i, vs := range values {
		if n == -1 {
			n = len(vs)
		} else if len(vs) != n {
			return nil, fmt.Errorf("%w: series %d has %d samples, expected %d", ErrRaggedBlock, i, len(vs), n)
		}
	}

	offset := 0
	if len(s.series) > 0 {
		offset = len(s.series[0])
	}
	blk := &Block{
		Stamp:  s.stamp,
		Labels: append([]string(nil), s.labels...),
		Values: make([][]float64, len(values)),
		Offset: offset,
		At:     time.Now(),
	}
	for i, vs := range values {
		s.series[i] = append(s.series[i], vs...)
		blk.Values[i] = append([]float64(nil), vs...)
	}
	return blk, nil
}

// Window returns the trailing n samples of every series. Shorter sessions
// return everything collected so far. The result is a copy.
func (s *Session) Window(n int) [][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][]float64, len(s.series))
	for i, vs := range s.series {
		start := 0
		if n > 0 && len(vs) > n {
			start = len(vs) - n
		}
		out[i] = append([]float64(nil), vs[start:]...)
	}
	return out
}

// Len returns the per-label sample count.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.series) == 0 {
		return 0
	}
	return len(s.series[0])
}

// Labels returns the session's sensor labels in acquisition order.
func (s *Session) Labels() []string {
	return append([]string(nil), s.labels...)
}

// Stamp returns the session identifier.
func (s *Session) Stamp() string { return s.stamp }

// Rate returns the sampling rate in Hz.
func (s *Session) Rate() int { return s.rate }

// Finish marks the session as ended.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endedAt = time.Now()
}

// Snapshot is a point-in-time view of a session, safe to serialize.
type Snapshot struct {
	Stamp     string    `json:"stamp"`
	Rate      int       `json:"rate"`
	Labels    []string  `json:"labels"`
	Samples   int       `json:"samples"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt,omitzero"`
	Running   bool      `json:"running"`
}

// Snapshot captures the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	samples := 0
	if len(s.series) > 0 {
		samples = len(s.series[0])
	}
	return Snapshot{
		Stamp:     s.stamp,
		Rate:      s.rate,
		Labels:    append([]string(nil), s.labels...),
		Samples:   samples,
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
		Running:   s.endedAt.IsZero(),
	}
}

// Registry keeps finished and running sessions addressable by stamp so
// they stay inspectable after acquisition ends.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	current  *Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session and makes it current.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Stamp()] = s
	r.current = s
}

// Get looks a session up by stamp.
func (r *Registry) Get(stamp string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[stamp]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, stamp)
	}
	return s, nil
}

// Current returns the most recently added session, or nil.
func (r *Registry) Current() *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// List returns snapshots of every known session, newest first.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}
