package domain

import (
	"fmt"
	"strings"
	"sync"
)

// slot guards a single activity's roster.
type slot struct {
	mu       sync.Mutex
	activity Activity
}

// Registry holds the activity catalog and every roster for the process lifetime.
// The set of activities is fixed at construction; only rosters change.
type Registry struct {
	slots           map[string]*slot
	order           []string
	enforceCapacity bool
}

// RegistryOption configures optional registry behaviour.
type RegistryOption func(*Registry)

// WithCapacityEnforcement makes SignUp reject emails once an activity reaches MaxParticipants.
func WithCapacityEnforcement(enabled bool) RegistryOption {
	return func(r *Registry) {
		r.enforceCapacity = enabled
	}
}

// NewRegistry validates seed and builds a registry from it. The seed is copied.
func NewRegistry(seed []Activity, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		slots: make(map[string]*slot, len(seed)),
		order: make([]string, 0, len(seed)),
	}
	for _, opt := range opts {
		opt(r)
	}

	for i, activity := range seed {
		if strings.TrimSpace(activity.Name) == "" {
			return nil, fmt.Errorf("%w: activity %d has no name", ErrInvalidCatalog, i)
		}
		if _, exists := r.slots[activity.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate activity %q", ErrInvalidCatalog, activity.Name)
		}
		if activity.MaxParticipants <= 0 {
			return nil, fmt.Errorf("%w: activity %q has non-positive capacity %d", ErrInvalidCatalog, activity.Name, activity.MaxParticipants)
		}
		seen := make(map[string]struct{}, len(activity.Participants))
		for _, email := range activity.Participants {
			if _, dup := seen[email]; dup {
				return nil, fmt.Errorf("%w: activity %q lists %s twice", ErrInvalidCatalog, activity.Name, email)
			}
			seen[email] = struct{}{}
		}

		r.slots[activity.Name] = &slot{activity: activity.clone()}
		r.order = append(r.order, activity.Name)
	}
	return r, nil
}

// List returns a snapshot of every activity keyed by name.
func (r *Registry) List() map[string]Activity {
	out := make(map[string]Activity, len(r.slots))
	for name, s := range r.slots {
		s.mu.Lock()
		out[name] = s.activity.clone()
		s.mu.Unlock()
	}
	return out
}

// Names returns activity names in catalog order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Get returns a snapshot of one activity.
func (r *Registry) Get(name string) (Activity, error) {
	s, err := r.lookup(name)
	if err != nil {
		return Activity{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity.clone(), nil
}

// SignUp appends email to the activity's roster and returns the updated activity.
// Each onChange callback runs with the activity still locked, so callbacks see
// roster changes of one activity in the order they happened. They must not block.
func (r *Registry) SignUp(name, email string, onChange ...func(Activity)) (Activity, error) {
	s, err := r.lookup(name)
	if err != nil {
		return Activity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activity.HasParticipant(email) {
		return Activity{}, fmt.Errorf("%w: %s for %s", ErrAlreadySignedUp, email, name)
	}
	if r.enforceCapacity && s.activity.Full() {
		return Activity{}, fmt.Errorf("%w: %s has %d of %d places taken", ErrActivityFull, name, len(s.activity.Participants), s.activity.MaxParticipants)
	}

	s.activity.Participants = append(s.activity.Participants, email)
	return s.committed(onChange), nil
}

// Unregister removes email from the activity's roster and returns the updated activity.
// onChange callbacks run under the activity lock as for SignUp.
func (r *Registry) Unregister(name, email string, onChange ...func(Activity)) (Activity, error) {
	s, err := r.lookup(name)
	if err != nil {
		return Activity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.activity.indexOf(email)
	if idx < 0 {
		return Activity{}, fmt.Errorf("%w: %s for %s", ErrNotSignedUp, email, name)
	}

	roster := s.activity.Participants
	s.activity.Participants = append(roster[:idx:idx], roster[idx+1:]...)
	return s.committed(onChange), nil
}

// committed snapshots the activity and hands it to callbacks. Caller holds s.mu.
func (s *slot) committed(onChange []func(Activity)) Activity {
	snapshot := s.activity.clone()
	for _, fn := range onChange {
		fn(snapshot.clone())
	}
	return snapshot
}

func (r *Registry) lookup(name string) (*slot, error) {
	s, ok := r.slots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrActivityNotFound, name)
	}
	return s, nil
}
