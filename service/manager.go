package service

import (
	"context"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/Kitt3120/lum/errors"
	"github.com/Kitt3120/lum/event"
	"github.com/Kitt3120/lum/log"
	"github.com/Kitt3120/lum/seq"
	"github.com/Kitt3120/lum/setlock"
)

var (
	ErrNotManaged  = errors.New("service is not managed by this manager")
	ErrNotStopped  = errors.New("service is not stopped")
	ErrNotStarted  = errors.New("service is not started")
	ErrTaskRunning = errors.New("service already has a background task running")
	ErrNotFound    = errors.New("no registered service matches the requested type")
	ErrAmbiguous   = errors.New("more than one registered service matches the requested type")
)

const (
	DefaultStartTimeout = 10 * time.Second
	DefaultStopTimeout  = 10 * time.Second

	// DefaultStatusBuffer bounds the queue between a started service's
	// status observable and the manager's aggregate repeater.
	DefaultStatusBuffer = 8
)

type (
	// OpResult is the outcome of one service's start or stop during a
	// registry-wide pass.
	OpResult struct {
		ID  string
		Err error
	}

	// Builder collects services for a Manager. The registry is fixed once
	// Build is called; services cannot be added or removed afterwards.
	Builder struct {
		services     *seq.Set[string, Service]
		startTimeout time.Duration
		stopTimeout  time.Duration
		statusBuffer int
	}

	// Manager owns the service registry and drives every lifecycle
	// transition. Status changes of started services are forwarded into
	// OnStatusChange, so one subscription is enough to observe the health
	// of the whole process.
	Manager struct {
		services *seq.Set[string, Service]
		locks    map[string]*sync.Mutex
		self     setlock.SetLock[*Manager]

		mu    sync.Mutex
		tasks map[string]*watchdog

		onStatusChange *event.Repeater[Status]

		startTimeout time.Duration
		stopTimeout  time.Duration
		statusBuffer int
	}
)

func NewBuilder() *Builder {
	return &Builder{
		services:     seq.NewSet(nil, func(s Service) string { return s.Info().ID }),
		startTimeout: DefaultStartTimeout,
		stopTimeout:  DefaultStopTimeout,
		statusBuffer: DefaultStatusBuffer,
	}
}

// With registers services in order. A service whose id is already registered
// is skipped with a warning; the first registration wins.
func (b *Builder) With(services ...Service) *Builder {
	for _, s := range services {
		info := s.Info()
		if b.services.Has(info.ID) {
			log.Warn().
				Str("service", info.Name).
				Str("id", info.ID).
				Msg("a service with that ID already exists, ignoring")
			continue
		}
		b.services.Add(s)
	}
	return b
}

func (b *Builder) WithStartTimeout(d time.Duration) *Builder {
	b.startTimeout = d
	return b
}

func (b *Builder) WithStopTimeout(d time.Duration) *Builder {
	b.stopTimeout = d
	return b
}

func (b *Builder) WithStatusBuffer(n int) *Builder {
	b.statusBuffer = n
	return b
}

// Build constructs the Manager and back-fills its write-once self-reference,
// which StartService hands to services so they can reach their siblings.
func (b *Builder) Build() *Manager {
	m := &Manager{
		services:       b.services,
		locks:          make(map[string]*sync.Mutex, b.services.Len()),
		tasks:          map[string]*watchdog{},
		onStatusChange: event.NewRepeater[Status]("manager_status_change"),
		startTimeout:   b.startTimeout,
		stopTimeout:    b.stopTimeout,
		statusBuffer:   b.statusBuffer,
	}
	for s := range m.services.Iter() {
		m.locks[s.Info().ID] = &sync.Mutex{}
	}

	if err := m.self.Set(m); err != nil {
		panic(errors.Wrap(err, "failed to back-fill manager self-reference"))
	}
	return m
}

// OnStatusChange aggregates the status observables of every currently
// started service into one event.
func (m *Manager) OnStatusChange() *event.Repeater[Status] {
	return m.onStatusChange
}

func (m *Manager) Services() iter.Seq[Service] {
	return m.services.Iter()
}

func (m *Manager) Len() int {
	return m.services.Len()
}

// Manages reports whether a service with the same id is registered.
func (m *Manager) Manages(s Service) bool {
	return m.services.Has(s.Info().ID)
}

// StartService drives one service Stopped -> Starting -> Started. The
// service-supplied Start is bounded by the start timeout; an error and an
// expired timeout are both recorded as FailedToStart. On success the
// service's background task, if any, is put under watchdog supervision.
func (m *Manager) StartService(ctx context.Context, s Service) error {
	info := s.Info()
	if !m.Manages(s) {
		return errors.Wrapf(ErrNotManaged, "service %q", info.ID)
	}

	lock := m.locks[info.ID]
	lock.Lock()
	defer lock.Unlock()

	if status := info.Status.Get(); status.State != StateStopped {
		return errors.Wrapf(ErrNotStopped, "service %q is %s", info.ID, status)
	}

	m.mu.Lock()
	_, running := m.tasks[info.ID]
	m.mu.Unlock()
	if running {
		return errors.Wrapf(ErrTaskRunning, "service %q", info.ID)
	}

	if err := m.onStatusChange.Attach(info.Status.OnChange(), m.statusBuffer); err != nil {
		return errors.Wrapf(err, "failed to attach status event of service %q", info.ID)
	}

	info.Status.Set(ctx, Starting)

	err := await(ctx, m.startTimeout, func(ctx context.Context) error {
		return s.Start(ctx, m.self.MustGet())
	})
	if err != nil {
		info.Status.Set(ctx, FailedToStart(err.Error()))
		log.Error().
			Str("service", info.Name).
			Err(err).
			Msg("failed to start service")
		return errors.Wrapf(err, "service %q failed to start", info.ID)
	}

	info.Status.Set(ctx, Started)
	log.Info().Str("service", info.Name).Msg("started service")

	if task := s.Task(); task != nil {
		m.superviseTask(s, task)
	}
	return nil
}

// StopService drives one service Started -> Stopping -> Stopped. The
// watchdog is canceled before teardown begins so a deliberate shutdown is
// never reported as a background task crash.
func (m *Manager) StopService(ctx context.Context, s Service) error {
	info := s.Info()
	if !m.Manages(s) {
		return errors.Wrapf(ErrNotManaged, "service %q", info.ID)
	}

	lock := m.locks[info.ID]
	lock.Lock()
	defer lock.Unlock()

	if status := info.Status.Get(); status.State != StateStarted {
		return errors.Wrapf(ErrNotStarted, "service %q is %s", info.ID, status)
	}

	m.mu.Lock()
	w := m.tasks[info.ID]
	delete(m.tasks, info.ID)
	m.mu.Unlock()
	if w != nil {
		w.stop()
	}

	info.Status.Set(ctx, Stopping)

	stopErr := await(ctx, m.stopTimeout, s.Stop)
	if stopErr != nil {
		info.Status.Set(ctx, FailedToStop(stopErr.Error()))
		log.Error().
			Str("service", info.Name).
			Err(stopErr).
			Msg("failed to stop service")
	} else {
		info.Status.Set(ctx, Stopped)
		log.Info().Str("service", info.Name).Msg("stopped service")
	}

	if err := m.onStatusChange.Detach(info.Status.OnChange()); err != nil {
		errors.Log(err, "failed to detach status event of service %q", info.ID)
		if stopErr == nil {
			return errors.Wrapf(err, "failed to detach status event of service %q", info.ID)
		}
	}

	if stopErr != nil {
		return errors.Wrapf(stopErr, "service %q failed to stop", info.ID)
	}
	return nil
}

// StartServices starts every registered service in registration order. One
// failure does not abort the pass; every result is reported.
func (m *Manager) StartServices(ctx context.Context) []OpResult {
	results := make([]OpResult, 0, m.services.Len())
	for s := range m.services.Iter() {
		results = append(results, OpResult{
			ID:  s.Info().ID,
			Err: m.StartService(ctx, s),
		})
	}
	return results
}

// StopServices stops every registered service in registration order.
func (m *Manager) StopServices(ctx context.Context) []OpResult {
	results := make([]OpResult, 0, m.services.Len())
	for s := range m.services.Iter() {
		results = append(results, OpResult{
			ID:  s.Info().ID,
			Err: m.StopService(ctx, s),
		})
	}
	return results
}

// OverallStatus is Healthy iff every essential service is started. Optional
// services never affect it.
func (m *Manager) OverallStatus() OverallStatus {
	for s := range m.services.Iter() {
		info := s.Info()
		if info.Priority != Essential {
			continue
		}
		if info.Status.Get().State != StateStarted {
			return Unhealthy
		}
	}
	return Healthy
}

// StatusOverview renders a grouped, human-readable report. Empty sections
// are omitted.
func (m *Manager) StatusOverview() string {
	var (
		failedEssentials strings.Builder
		failedOptionals  strings.Builder
		essentials       strings.Builder
		optionals        strings.Builder
		others           strings.Builder
	)

	for s := range m.services.Iter() {
		info := s.Info()
		status := info.Status.Get()

		var section *strings.Builder
		switch {
		case status.State == StateStarted || status.State == StateStopped:
			if info.Priority == Essential {
				section = &essentials
			} else {
				section = &optionals
			}
		case status.Failed():
			if info.Priority == Essential {
				section = &failedEssentials
			} else {
				section = &failedOptionals
			}
		default:
			section = &others
		}

		section.WriteString(" - ")
		section.WriteString(info.Name)
		section.WriteString(": ")
		section.WriteString(status.String())
		section.WriteString("\n")
	}

	var report strings.Builder
	writeSection := func(title string, section *strings.Builder) {
		if section.Len() == 0 {
			return
		}
		report.WriteString("- ")
		report.WriteString(title)
		report.WriteString(":\n")
		report.WriteString(section.String())
	}

	writeSection("Failed essential services", &failedEssentials)
	writeSection("Failed optional services", &failedOptionals)
	writeSection("Essential services", &essentials)
	writeSection("Optional services", &optionals)
	writeSection("Other services", &others)

	return report.String()
}

// Get returns the single registered service of the concrete type T. It
// fails when no service or more than one service matches.
func Get[T Service](m *Manager) (T, error) {
	var (
		found T
		count int
	)
	for s := range m.services.Iter() {
		if match, ok := s.(T); ok {
			found = match
			count++
		}
	}

	switch count {
	case 1:
		return found, nil
	case 0:
		var zero T
		return zero, errors.Wrapf(ErrNotFound, "type %T", zero)
	default:
		var zero T
		return zero, errors.Wrapf(ErrAmbiguous, "type %T matches %d services", zero, count)
	}
}

// await runs fn bounded by a wall-clock timeout. On expiry fn is abandoned,
// not waited for; its context is canceled and its eventual result discarded.
func await(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- fn(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return errors.Errorf("timed out after %s", timeout)
	}
}
