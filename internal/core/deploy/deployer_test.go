package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitboard/bitboard-deploy/internal/core/domain"
)

// fakeRuntime is an in-memory ContainerService tracking one container per
// name, like the real runtime does.
type fakeRuntime struct {
	mu         sync.Mutex
	containers map[string]*domain.Container
	nextID     int
	calls      []string

	stopErr   error
	createErr error
	startErr  error

	createDelay time.Duration
	inCreate    bool
	overlapped  bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{containers: make(map[string]*domain.Container)}
}

func (f *fakeRuntime) FindByName(_ context.Context, name string) (domain.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[name]
	if !ok {
		return domain.Container{}, domain.ErrNotFound
	}
	return *c, nil
}

func (f *fakeRuntime) Create(_ context.Context, spec domain.ServiceSpec) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "create")
	if f.inCreate {
		f.overlapped = true
	}
	f.inCreate = true
	delay := f.createDelay
	f.mu.Unlock()

	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inCreate = false
	if f.createErr != nil {
		return "", f.createErr
	}
	if _, exists := f.containers[spec.Name]; exists {
		return "", fmt.Errorf("conflict: container name %q already in use", spec.Name)
	}
	f.nextID++
	id := fmt.Sprintf("c%011d%028d", f.nextID, 0)
	f.containers[spec.Name] = &domain.Container{
		ID:    domain.ShortID(id),
		Name:  spec.Name,
		Image: spec.Image,
		State: "created",
	}
	return id, nil
}

func (f *fakeRuntime) Start(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start")
	if f.startErr != nil {
		return f.startErr
	}
	for _, c := range f.containers {
		if c.ID == domain.ShortID(id) {
			c.State = "running"
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeRuntime) Stop(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stop")
	if f.stopErr != nil {
		return f.stopErr
	}
	c, ok := f.containers[name]
	if !ok {
		return domain.ErrNotFound
	}
	c.State = "exited"
	return nil
}

func (f *fakeRuntime) Remove(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "remove")
	if _, ok := f.containers[name]; !ok {
		return domain.ErrNotFound
	}
	delete(f.containers, name)
	return nil
}

func (f *fakeRuntime) List(_ context.Context) ([]domain.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Container
	for _, c := range f.containers {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeRuntime) Logs(_ context.Context, name string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[name]; !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader("log line\n")), nil
}

// memHistory is an in-memory ledger.
type memHistory struct {
	mu      sync.Mutex
	entries []domain.Deployment
	err     error
}

func (m *memHistory) Record(_ context.Context, d domain.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, d)
	return nil
}

func (m *memHistory) List(_ context.Context, _ int) ([]domain.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Deployment(nil), m.entries...), nil
}

func (m *memHistory) Close() error { return nil }

func testSpec() domain.ServiceSpec {
	return domain.ServiceSpec{
		Name:          "bitboard-rest",
		Image:         "bitboard-rest:latest",
		Ports:         []domain.PortBinding{{Host: 5000, Container: 5000}},
		MountSource:   "/srv/bitboard",
		MountTarget:   "/code",
		RestartPolicy: domain.RestartUnlessStopped,
		Command:       []string{"python3", "run.py"},
	}
}

func discard(format string, args ...any) {}

func TestReplace_FromEmpty(t *testing.T) {
	rt := newFakeRuntime()
	d := New(rt, WithLogger(discard))

	c, err := d.Replace(context.Background(), testSpec())
	require.NoError(t, err)
	assert.Equal(t, "bitboard-rest", c.Name)
	assert.True(t, c.Running())

	// Stop and remove run first even on an empty slot; their not-found
	// errors are swallowed.
	assert.Equal(t, []string{"stop", "remove", "create", "start"}, rt.calls)
}

func TestReplace_ReplacesRunningInstance(t *testing.T) {
	rt := newFakeRuntime()
	d := New(rt, WithLogger(discard))

	first, err := d.Replace(context.Background(), testSpec())
	require.NoError(t, err)

	second, err := d.Replace(context.Background(), testSpec())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)

	list, err := rt.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1, "exactly one instance after the second replace")
	assert.Equal(t, second.ID, list[0].ID)
	assert.True(t, list[0].Running())
}

func TestReplace_FromStoppedInstance(t *testing.T) {
	rt := newFakeRuntime()
	d := New(rt, WithLogger(discard))

	_, err := d.Replace(context.Background(), testSpec())
	require.NoError(t, err)
	require.NoError(t, rt.Stop(context.Background(), "bitboard-rest"))

	c, err := d.Replace(context.Background(), testSpec())
	require.NoError(t, err)
	assert.True(t, c.Running())

	list, _ := rt.List(context.Background())
	require.Len(t, list, 1)
}

func TestReplace_StopErrorDoesNotAbort(t *testing.T) {
	rt := newFakeRuntime()
	rt.stopErr = errors.New("runtime hiccup")
	d := New(rt, WithLogger(discard))

	c, err := d.Replace(context.Background(), testSpec())
	require.NoError(t, err)
	assert.True(t, c.Running())
}

func TestReplace_StartFailureIsFatal(t *testing.T) {
	rt := newFakeRuntime()
	rt.startErr = errors.New("port is already allocated")
	hist := &memHistory{}
	d := New(rt, WithHistory(hist), WithLogger(discard))

	_, err := d.Replace(context.Background(), testSpec())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start bitboard-rest")

	// The failure is ledgered, and no rollback resurrects the old instance.
	require.Len(t, hist.entries, 1)
	assert.Equal(t, domain.OutcomeFailed, hist.entries[0].Outcome)

	_, found, err := d.Status(context.Background(), "bitboard-rest")
	require.NoError(t, err)
	assert.True(t, found, "created container is left behind, stopped")
}

func TestReplace_CreateFailureIsFatal(t *testing.T) {
	rt := newFakeRuntime()
	rt.createErr = errors.New("no such image: bitboard-rest:latest")
	d := New(rt, WithLogger(discard))

	_, err := d.Replace(context.Background(), testSpec())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such image")
}

func TestReplace_InvalidSpec(t *testing.T) {
	rt := newFakeRuntime()
	d := New(rt, WithLogger(discard))

	spec := testSpec()
	spec.Name = ""
	_, err := d.Replace(context.Background(), spec)
	require.Error(t, err)
	assert.Empty(t, rt.calls, "nothing reaches the runtime on an invalid spec")
}

func TestReplace_ConcurrentCallsSerialize(t *testing.T) {
	rt := newFakeRuntime()
	rt.createDelay = 20 * time.Millisecond
	d := New(rt, WithLogger(discard))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = d.Replace(context.Background(), testSpec())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "replace %d", i)
	}
	assert.False(t, rt.overlapped, "creates must not interleave")

	list, _ := rt.List(context.Background())
	require.Len(t, list, 1)
	assert.True(t, list[0].Running())
}

func TestTeardown_Idempotent(t *testing.T) {
	rt := newFakeRuntime()
	d := New(rt, WithLogger(discard))

	_, err := d.Replace(context.Background(), testSpec())
	require.NoError(t, err)

	require.NoError(t, d.Teardown(context.Background(), "bitboard-rest"))
	require.NoError(t, d.Teardown(context.Background(), "bitboard-rest"))

	_, found, err := d.Status(context.Background(), "bitboard-rest")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStatus_AbsentIsNotAnError(t *testing.T) {
	d := New(newFakeRuntime(), WithLogger(discard))

	_, found, err := d.Status(context.Background(), "bitboard-rest")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReplace_RecordsHistory(t *testing.T) {
	rt := newFakeRuntime()
	hist := &memHistory{}
	d := New(rt, WithHistory(hist), WithLogger(discard))

	c, err := d.Replace(context.Background(), testSpec())
	require.NoError(t, err)
	require.NoError(t, d.Teardown(context.Background(), "bitboard-rest"))

	require.Len(t, hist.entries, 2)
	assert.Equal(t, domain.ActionReplace, hist.entries[0].Action)
	assert.Equal(t, domain.OutcomeOK, hist.entries[0].Outcome)
	assert.Equal(t, c.ID, hist.entries[0].ContainerID)
	assert.Equal(t, domain.ActionTeardown, hist.entries[1].Action)
}

func TestReplace_HistoryFailureIsNotFatal(t *testing.T) {
	rt := newFakeRuntime()
	hist := &memHistory{err: errors.New("disk full")}
	d := New(rt, WithHistory(hist), WithLogger(discard))

	c, err := d.Replace(context.Background(), testSpec())
	require.NoError(t, err)
	assert.True(t, c.Running())
}
