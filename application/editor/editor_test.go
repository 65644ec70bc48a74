package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/domain/telemetry"
	"github.com/BenjaminAGH/NocturneScope/domain/topology"
	"github.com/BenjaminAGH/NocturneScope/infrastructure/config"
	"github.com/BenjaminAGH/NocturneScope/infrastructure/upstream"
)

// fakeAPI implements UpstreamAPI in memory.
type fakeAPI struct {
	mu        sync.Mutex
	stats     map[string]telemetry.LastStats
	statsErr  map[string]error
	alerts    []string
	alertsErr error

	records map[string]upstream.TopologyRecord
	creates int
	updates int
	nextID  int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		stats:    make(map[string]telemetry.LastStats),
		statsErr: make(map[string]error),
		records:  make(map[string]upstream.TopologyRecord),
	}
}

func (f *fakeAPI) LastStats(ctx context.Context, token, device string) (telemetry.LastStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.statsErr[device]; err != nil {
		return telemetry.LastStats{}, err
	}
	stats, ok := f.stats[device]
	if !ok {
		return telemetry.LastStats{}, errors.New("no such device")
	}
	return stats, nil
}

func (f *fakeAPI) RecentAlerts(ctx context.Context, token string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alertsErr != nil {
		return nil, f.alertsErr
	}
	return append([]string(nil), f.alerts...), nil
}

func (f *fakeAPI) CreateTopology(ctx context.Context, token, name, data string) (upstream.TopologyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.nextID++
	record := upstream.TopologyRecord{ID: fmt.Sprintf("t-%d", f.nextID), Name: name, Data: data}
	f.records[record.ID] = record
	return record, nil
}

func (f *fakeAPI) UpdateTopology(ctx context.Context, token, id, name, data string) (upstream.TopologyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return upstream.TopologyRecord{}, errors.New("not found")
	}
	f.updates++
	record.Name = name
	record.Data = data
	f.records[id] = record
	return record, nil
}

func (f *fakeAPI) GetTopology(ctx context.Context, token, id string) (upstream.TopologyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return upstream.TopologyRecord{}, errors.New("not found")
	}
	return record, nil
}

func (f *fakeAPI) saveCounts() (creates, updates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates, f.updates
}

// quietConfig keeps the background tickers out of the way so tests can drive
// poll cycles by hand.
func quietConfig() config.EditorConfig {
	return config.EditorConfig{
		DevicePollInterval: time.Hour,
		AlertPollInterval:  time.Hour,
		AutosaveDelay:      time.Hour,
		LivenessWindow:     300 * time.Second,
		AutoDetectGateways: true,
		SessionIdleTimeout: time.Hour,
	}
}

func newTestManager(t *testing.T, api UpstreamAPI, cfg config.EditorConfig) *Manager {
	t.Helper()
	m := NewManager(api, cfg, zap.NewNop(), nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	return m
}

func addDevice(t *testing.T, s *Session, id, name string) {
	t.Helper()
	node, err := topology.NewNode(id, topology.Position{}, topology.DeviceData{DeviceName: name, Status: topology.StatusUnknown})
	require.NoError(t, err)
	require.NoError(t, s.AddNode(node))
}

func findNode(t *testing.T, s *Session, id string) topology.Node {
	t.Helper()
	nodes, _ := s.Snapshot()
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("node %s not found", id)
	return topology.Node{}
}

func TestPollDevicesIsolatesFailures(t *testing.T) {
	api := newFakeAPI()
	api.stats["server-01"] = telemetry.LastStats{Device: "server-01", IP: "10.0.0.5", Timestamp: time.Now()}
	api.statsErr["server-02"] = errors.New("collector down")

	m := newTestManager(t, api, quietConfig())
	s := m.Open("u-1", "tok")
	addDevice(t, s, "dev-1", "server-01")
	addDevice(t, s, "dev-2", "server-02")

	s.pollDevices(context.Background())

	assert.Equal(t, topology.StatusOnline, findNode(t, s, "dev-1").Data.(topology.DeviceData).Status)
	assert.Equal(t, topology.StatusUnknown, findNode(t, s, "dev-2").Data.(topology.DeviceData).Status)
}

func TestPollDevicesMarksStaleOffline(t *testing.T) {
	api := newFakeAPI()
	api.stats["server-01"] = telemetry.LastStats{
		Device:    "server-01",
		Gateway:   "192.168.1.1",
		Timestamp: time.Now().Add(-10 * time.Minute),
	}

	m := newTestManager(t, api, quietConfig())
	s := m.Open("u-1", "tok")
	addDevice(t, s, "dev-1", "server-01")

	s.pollDevices(context.Background())

	assert.Equal(t, topology.StatusOffline, findNode(t, s, "dev-1").Data.(topology.DeviceData).Status)
	// A stale device does not vouch for its gateway.
	_, edges := s.Snapshot()
	assert.Empty(t, edges)
}

func TestPollDevicesDetectsGateways(t *testing.T) {
	api := newFakeAPI()
	api.stats["server-01"] = telemetry.LastStats{Device: "server-01", Gateway: "192.168.1.1", Timestamp: time.Now()}

	m := newTestManager(t, api, quietConfig())
	s := m.Open("u-1", "tok")
	addDevice(t, s, "dev-1", "server-01")

	s.pollDevices(context.Background())
	s.pollDevices(context.Background())

	nodes, edges := s.Snapshot()
	assert.Len(t, nodes, 2)
	assert.Len(t, edges, 1)
	router := findNode(t, s, topology.RouterNodeID("192.168.1.1"))
	assert.Equal(t, 1, router.Data.(topology.RouterData).DeviceCount)
}

func TestAutoDetectToggleOffSkipsGateways(t *testing.T) {
	api := newFakeAPI()
	api.stats["server-01"] = telemetry.LastStats{Device: "server-01", Gateway: "192.168.1.1", Timestamp: time.Now()}

	m := newTestManager(t, api, quietConfig())
	s := m.Open("u-1", "tok")
	addDevice(t, s, "dev-1", "server-01")
	s.SetAutoDetect(false)

	s.pollDevices(context.Background())

	nodes, _ := s.Snapshot()
	assert.Len(t, nodes, 1)
}

func TestPollAlertsKeepsStateOnFailure(t *testing.T) {
	api := newFakeAPI()
	m := newTestManager(t, api, quietConfig())
	s := m.Open("u-1", "tok")
	addDevice(t, s, "dev-1", "server-01")
	act, err := topology.NewNode("act-1", topology.Position{}, topology.ActionData{Metric: "cpu", Operator: ">", Threshold: 90})
	require.NoError(t, err)
	require.NoError(t, s.AddNode(act))
	require.NoError(t, s.Connect(topology.Edge{ID: "e1", Source: "dev-1", Target: "act-1"}))

	api.mu.Lock()
	api.alerts = []string{"act-1"}
	api.mu.Unlock()
	s.pollAlerts(context.Background())
	assert.True(t, findNode(t, s, "act-1").Data.(topology.ActionData).IsActive)

	api.mu.Lock()
	api.alertsErr = errors.New("upstream down")
	api.mu.Unlock()
	s.pollAlerts(context.Background())
	// Transient failure leaves the last known highlights standing.
	assert.True(t, findNode(t, s, "act-1").Data.(topology.ActionData).IsActive)
}

func TestAutosaveWaitsForFirstManualSave(t *testing.T) {
	api := newFakeAPI()
	cfg := quietConfig()
	cfg.AutosaveDelay = 20 * time.Millisecond

	m := newTestManager(t, api, cfg)
	s := m.Open("u-1", "tok")

	// Edits on a never-saved session must not mint records on their own.
	addDevice(t, s, "dev-1", "server-01")
	time.Sleep(150 * time.Millisecond)

	creates, updates := api.saveCounts()
	assert.Equal(t, 0, creates)
	assert.Equal(t, 0, updates)
	_, _, dirty := s.Meta()
	assert.True(t, dirty)
}

func TestAutosaveCoalescesEditBursts(t *testing.T) {
	api := newFakeAPI()
	cfg := quietConfig()
	cfg.AutosaveDelay = 50 * time.Millisecond

	m := newTestManager(t, api, cfg)
	s := m.Open("u-1", "tok")
	addDevice(t, s, "dev-1", "server-01")
	require.NoError(t, s.Save(context.Background()))

	addDevice(t, s, "dev-2", "server-02")
	addDevice(t, s, "dev-3", "server-03")

	require.Eventually(t, func() bool {
		_, updates := api.saveCounts()
		return updates == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The burst coalesced into one update, and the session is clean.
	creates, updates := api.saveCounts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, updates)
	_, _, dirty := s.Meta()
	assert.False(t, dirty)
}

func TestSaveCreatesThenUpdatesSameRecord(t *testing.T) {
	api := newFakeAPI()
	m := newTestManager(t, api, quietConfig())
	s := m.Open("u-1", "tok")
	addDevice(t, s, "dev-1", "server-01")

	require.NoError(t, s.Save(context.Background()))
	firstID, _, _ := s.Meta()
	require.NotEmpty(t, firstID)

	addDevice(t, s, "dev-2", "server-02")
	require.NoError(t, s.Save(context.Background()))
	secondID, _, _ := s.Meta()

	assert.Equal(t, firstID, secondID)
	creates, updates := api.saveCounts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, updates)
}

func TestLoadResetsTransientState(t *testing.T) {
	api := newFakeAPI()
	m := newTestManager(t, api, quietConfig())

	builder := m.Open("u-1", "tok")
	addDevice(t, builder, "dev-1", "server-01")
	mon, err := topology.NewNode("mon-1", topology.Position{}, topology.MonitoringData{Metric: "cpu"})
	require.NoError(t, err)
	require.NoError(t, builder.AddNode(mon))
	require.NoError(t, builder.Connect(topology.Edge{ID: "e1", Source: "dev-1", Target: "mon-1"}))
	require.NoError(t, builder.Save(context.Background()))
	topologyID, _, _ := builder.Meta()

	s := m.Open("u-1", "tok")
	require.NoError(t, s.Load(context.Background(), topologyID))

	dev := findNode(t, s, "dev-1")
	assert.Equal(t, topology.StatusUnknown, dev.Data.(topology.DeviceData).Status)
	monNode := findNode(t, s, "mon-1")
	assert.Equal(t, "server-01", monNode.Data.(topology.MonitoringData).ConnectedDevice)
}

func TestManagerScopesSessionsByUser(t *testing.T) {
	api := newFakeAPI()
	m := newTestManager(t, api, quietConfig())
	s := m.Open("u-1", "tok")

	_, err := m.Get(s.ID, "u-2")
	require.Error(t, err)

	got, err := m.Get(s.ID, "u-1")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}

func TestCloseFlushesPendingChanges(t *testing.T) {
	api := newFakeAPI()
	m := newTestManager(t, api, quietConfig())
	s := m.Open("u-1", "tok")
	addDevice(t, s, "dev-1", "server-01")
	require.NoError(t, s.Save(context.Background()))
	addDevice(t, s, "dev-2", "server-02")

	require.NoError(t, m.Close(context.Background(), s.ID, "u-1"))

	creates, updates := api.saveCounts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, updates)
	_, err := m.Get(s.ID, "u-1")
	assert.Error(t, err)
}

func TestCloseDiscardsNeverSavedSession(t *testing.T) {
	api := newFakeAPI()
	m := newTestManager(t, api, quietConfig())
	s := m.Open("u-1", "tok")
	addDevice(t, s, "dev-1", "server-01")

	require.NoError(t, m.Close(context.Background(), s.ID, "u-1"))

	creates, updates := api.saveCounts()
	assert.Equal(t, 0, creates)
	assert.Equal(t, 0, updates)
}
