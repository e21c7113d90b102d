// Package deploy owns the single named container slot for a service:
// replacing the running instance, tearing it down, and reporting its state.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/bitboard/bitboard-deploy/internal/core/domain"
	"github.com/bitboard/bitboard-deploy/internal/core/ports"
)

// Deployer serializes lifecycle operations per service name. Two concurrent
// Replace calls for the same name cannot both observe an empty slot and
// race to create; the second waits and replaces the first's container.
type Deployer struct {
	runtime ports.ContainerService
	history ports.HistoryStore
	logf    func(format string, args ...any)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithHistory records every replace and teardown in the given ledger.
// Ledger failures are logged, never fatal to the operation itself.
func WithHistory(store ports.HistoryStore) Option {
	return func(d *Deployer) { d.history = store }
}

// WithLogger overrides the default stdlib logger.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(d *Deployer) { d.logf = logf }
}

// New creates a Deployer on top of the given container runtime.
func New(runtime ports.ContainerService, opts ...Option) *Deployer {
	d := &Deployer{
		runtime: runtime,
		logf:    log.Printf,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Deployer) lock(name string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[name]
	if !ok {
		l = &sync.Mutex{}
		d.locks[name] = l
	}
	return l
}

// Replace ensures exactly one running instance of the named service exists,
// replacing any prior one. Stop and remove of the old instance tolerate its
// absence; a failure to create or start the new instance is fatal and is
// returned after the old instance is already gone, with no rollback.
func (d *Deployer) Replace(ctx context.Context, spec domain.ServiceSpec) (domain.Container, error) {
	if err := spec.Validate(); err != nil {
		return domain.Container{}, err
	}

	l := d.lock(spec.Name)
	l.Lock()
	defer l.Unlock()

	d.teardown(ctx, spec.Name)

	id, err := d.runtime.Create(ctx, spec)
	if err != nil {
		err = fmt.Errorf("create %s: %w", spec.Name, err)
		d.record(ctx, domain.ActionReplace, spec, "", err)
		return domain.Container{}, err
	}
	if err := d.runtime.Start(ctx, id); err != nil {
		err = fmt.Errorf("start %s: %w", spec.Name, err)
		d.record(ctx, domain.ActionReplace, spec, id, err)
		return domain.Container{}, err
	}

	d.record(ctx, domain.ActionReplace, spec, id, nil)

	c, err := d.runtime.FindByName(ctx, spec.Name)
	if err != nil {
		// Started fine; report what we know rather than failing the replace.
		return domain.Container{
			ID:    domain.ShortID(id),
			Name:  spec.Name,
			Image: spec.Image,
			State: "running",
		}, nil
	}
	return c, nil
}

// Teardown stops and removes the named container. It is idempotent: a
// missing container is a successful no-op.
func (d *Deployer) Teardown(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("service name is required")
	}

	l := d.lock(name)
	l.Lock()
	defer l.Unlock()

	if err := d.runtime.Stop(ctx, name); err != nil && !errors.Is(err, domain.ErrNotFound) {
		d.record(ctx, domain.ActionTeardown, domain.ServiceSpec{Name: name}, "", err)
		return fmt.Errorf("stop %s: %w", name, err)
	}
	if err := d.runtime.Remove(ctx, name); err != nil && !errors.Is(err, domain.ErrNotFound) {
		d.record(ctx, domain.ActionTeardown, domain.ServiceSpec{Name: name}, "", err)
		return fmt.Errorf("remove %s: %w", name, err)
	}
	d.record(ctx, domain.ActionTeardown, domain.ServiceSpec{Name: name}, "", nil)
	return nil
}

// teardown is the tolerant pre-replace sweep: any stop/remove error on the
// prior instance is expected (most often it simply does not exist) and must
// not abort the replace.
func (d *Deployer) teardown(ctx context.Context, name string) {
	if err := d.runtime.Stop(ctx, name); err != nil && !errors.Is(err, domain.ErrNotFound) {
		d.logf("stop %s: %v (ignored)", name, err)
	}
	if err := d.runtime.Remove(ctx, name); err != nil && !errors.Is(err, domain.ErrNotFound) {
		d.logf("remove %s: %v (ignored)", name, err)
	}
}

// Status reports the named container and whether it exists at all.
func (d *Deployer) Status(ctx context.Context, name string) (domain.Container, bool, error) {
	c, err := d.runtime.FindByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Container{}, false, nil
	}
	if err != nil {
		return domain.Container{}, false, fmt.Errorf("inspect %s: %w", name, err)
	}
	return c, true, nil
}

// Logs streams the named container's logs. The caller closes the stream.
func (d *Deployer) Logs(ctx context.Context, name string) (io.ReadCloser, error) {
	return d.runtime.Logs(ctx, name)
}

// List returns all containers known to the runtime.
func (d *Deployer) List(ctx context.Context) ([]domain.Container, error) {
	return d.runtime.List(ctx)
}

func (d *Deployer) record(ctx context.Context, action string, spec domain.ServiceSpec, containerID string, opErr error) {
	if d.history == nil {
		return
	}
	entry := domain.Deployment{
		Action:      action,
		Service:     spec.Name,
		Image:       spec.Image,
		ContainerID: domain.ShortID(containerID),
		Outcome:     domain.OutcomeOK,
		CreatedAt:   time.Now().UTC(),
	}
	if opErr != nil {
		entry.Outcome = domain.OutcomeFailed
		entry.Error = opErr.Error()
	}
	if err := d.history.Record(ctx, entry); err != nil {
		d.logf("record deployment: %v", err)
	}
}
