package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"ridemeter/internal/clock"
	"ridemeter/internal/repository"
)

// RegistryDeps contains the collaborators shared by every session.
type RegistryDeps struct {
	Store        repository.DurableStore
	Transport    repository.SyncTransport
	Clock        clock.Clock
	Billing      BillingConfig
	Presentation Presentation
	Notifier     *NotificationService
	Logger       *slog.Logger
}

// SessionRegistry hands out one SessionFacade per driver. Each facade works
// on a driver-scoped view of the shared store.
type SessionRegistry struct {
	deps RegistryDeps

	mu       sync.Mutex
	sessions map[string]*SessionFacade
}

// NewSessionRegistry creates a SessionRegistry.
func NewSessionRegistry(deps RegistryDeps) (*SessionRegistry, error) {
	if err := deps.Billing.Validate(); err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &SessionRegistry{
		deps:     deps,
		sessions: make(map[string]*SessionFacade),
	}, nil
}

// Get returns the driver's session, creating it on first use. State is
// loaded lazily from the store on the first operation.
func (r *SessionRegistry) Get(ctx context.Context, driverID string) (*SessionFacade, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.sessions[driverID]; ok {
		return f, nil
	}

	store := repository.ForDriver(r.deps.Store, driverID)
	meter := NewBillingMeter(store, r.deps.Clock, r.deps.Billing, r.deps.Transport, r.deps.Notifier, r.deps.Logger)
	trip := NewTripStateMachine(meter, store, r.deps.Clock, r.deps.Notifier, r.deps.Logger)
	f := NewSessionFacade(driverID, trip, meter, r.deps.Clock, r.deps.Presentation, r.deps.Logger)

	// Fail early on an unreadable store rather than on the first event.
	if _, err := f.trip.State(ctx); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	r.sessions[driverID] = f
	r.deps.Logger.Debug("session opened", "driver_id", driverID)
	return f, nil
}

// DriverIDs returns the drivers with an open session, sorted.
func (r *SessionRegistry) DriverIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
