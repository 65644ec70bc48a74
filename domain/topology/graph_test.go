package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

func mustAdd(t *testing.T, g *Graph, id string, data NodeData) {
	t.Helper()
	node, err := NewNode(id, Position{}, data)
	require.NoError(t, err)
	require.NoError(t, g.AddNode(node))
}

func TestAddNodeRejectsDuplicates(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "dev-1", DeviceData{DeviceName: "server-01", Status: StatusUnknown})

	dup, err := NewNode("dev-1", Position{}, DeviceData{DeviceName: "other"})
	require.NoError(t, err)
	err = g.AddNode(dup)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestConnectRejectsDanglingEndpoints(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "dev-1", DeviceData{DeviceName: "server-01"})

	err := g.Connect(Edge{ID: "e1", Source: "dev-1", Target: "ghost"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Empty(t, g.Edges())
}

func TestConnectDerivesDeviceBindingBothDirections(t *testing.T) {
	for name, swap := range map[string]bool{"device as source": false, "device as target": true} {
		t.Run(name, func(t *testing.T) {
			g := NewGraph()
			mustAdd(t, g, "dev-1", DeviceData{DeviceName: "server-01"})
			mustAdd(t, g, "mon-1", MonitoringData{Metric: "cpu"})

			edge := Edge{ID: "e1", Source: "dev-1", Target: "mon-1"}
			if swap {
				edge.Source, edge.Target = edge.Target, edge.Source
			}
			require.NoError(t, g.Connect(edge))

			mon, ok := g.Node("mon-1")
			require.True(t, ok)
			assert.Equal(t, "server-01", mon.Data.(MonitoringData).ConnectedDevice)
		})
	}
}

func TestEmailInheritsDeviceThroughAction(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "dev-1", DeviceData{DeviceName: "server-01"})
	mustAdd(t, g, "act-1", ActionData{Metric: "cpu", Operator: ">", Threshold: 90})
	mustAdd(t, g, "mail-1", EmailData{To: "ops@example.com"})

	require.NoError(t, g.Connect(Edge{ID: "e1", Source: "dev-1", Target: "act-1"}))
	require.NoError(t, g.Connect(Edge{ID: "e2", Source: "act-1", Target: "mail-1"}))

	mail, _ := g.Node("mail-1")
	assert.Equal(t, "server-01", mail.Data.(EmailData).ConnectedDevice)
}

func TestEmailWithoutActionDeviceStaysUnbound(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "act-1", ActionData{Metric: "cpu", Operator: ">", Threshold: 90})
	mustAdd(t, g, "mail-1", EmailData{To: "ops@example.com"})

	require.NoError(t, g.Connect(Edge{ID: "e1", Source: "act-1", Target: "mail-1"}))

	mail, _ := g.Node("mail-1")
	assert.Empty(t, mail.Data.(EmailData).ConnectedDevice)
}

func TestRemoveEdgesClearsDerivedBindings(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "dev-1", DeviceData{DeviceName: "server-01"})
	mustAdd(t, g, "act-1", ActionData{Metric: "cpu", Operator: ">", Threshold: 90})
	mustAdd(t, g, "mail-1", EmailData{To: "ops@example.com"})
	require.NoError(t, g.Connect(Edge{ID: "e1", Source: "dev-1", Target: "act-1"}))
	require.NoError(t, g.Connect(Edge{ID: "e2", Source: "act-1", Target: "mail-1"}))

	// Dropping the device edge cascades through the action to the email node.
	g.RemoveEdges("e1")

	act, _ := g.Node("act-1")
	assert.Empty(t, act.Data.(ActionData).ConnectedDevice)
	mail, _ := g.Node("mail-1")
	assert.Empty(t, mail.Data.(EmailData).ConnectedDevice)
	assert.Len(t, g.Edges(), 1)
}

func TestRemoveNodeDropsIncidentEdges(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "dev-1", DeviceData{DeviceName: "server-01"})
	mustAdd(t, g, "mon-1", MonitoringData{Metric: "cpu"})
	require.NoError(t, g.Connect(Edge{ID: "e1", Source: "dev-1", Target: "mon-1"}))

	require.NoError(t, g.RemoveNode("dev-1"))

	assert.Empty(t, g.Edges())
	mon, _ := g.Node("mon-1")
	assert.Empty(t, mon.Data.(MonitoringData).ConnectedDevice)
}

func TestApplyDeviceReportsUpdatesStatus(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "dev-1", DeviceData{DeviceName: "server-01", Status: StatusUnknown})
	mustAdd(t, g, "dev-2", DeviceData{DeviceName: "server-02", Status: StatusOnline})

	g.ApplyDeviceReports([]DeviceReport{
		{NodeID: "dev-1", Status: StatusOnline, IP: "10.0.0.5"},
		{NodeID: "dev-2", Status: StatusOffline},
	}, false)

	d1, _ := g.Node("dev-1")
	assert.Equal(t, StatusOnline, d1.Data.(DeviceData).Status)
	assert.Equal(t, "10.0.0.5", d1.Data.(DeviceData).IP)
	d2, _ := g.Node("dev-2")
	assert.Equal(t, StatusOffline, d2.Data.(DeviceData).Status)
}

func TestGatewayDetectionIsIdempotent(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "dev-1", DeviceData{DeviceName: "server-01"})
	mustAdd(t, g, "dev-2", DeviceData{DeviceName: "server-02"})

	reports := []DeviceReport{
		{NodeID: "dev-1", Status: StatusOnline, Gateway: "192.168.1.1"},
		{NodeID: "dev-2", Status: StatusOnline, Gateway: "192.168.1.1"},
	}
	g.ApplyDeviceReports(reports, true)
	g.ApplyDeviceReports(reports, true)

	routerID := RouterNodeID("192.168.1.1")
	assert.Equal(t, "router-192-168-1-1", routerID)

	router, ok := g.Node(routerID)
	require.True(t, ok)
	assert.Equal(t, 2, router.Data.(RouterData).DeviceCount)
	assert.Len(t, g.Nodes(), 3)
	assert.Len(t, g.Edges(), 2)

	for _, deviceID := range []string{"dev-1", "dev-2"} {
		edge, ok := g.Edge(RouterEdgeID(routerID, deviceID))
		require.True(t, ok)
		assert.True(t, edge.Animated)
	}
}

func TestRouterPositionSitsAboveFirstDevice(t *testing.T) {
	g := NewGraph()
	node, err := NewNode("dev-1", Position{X: 400, Y: 300}, DeviceData{DeviceName: "server-01"})
	require.NoError(t, err)
	require.NoError(t, g.AddNode(node))

	g.ApplyDeviceReports([]DeviceReport{
		{NodeID: "dev-1", Status: StatusOnline, Gateway: "10.0.0.1"},
	}, true)

	router, ok := g.Node(RouterNodeID("10.0.0.1"))
	require.True(t, ok)
	assert.Equal(t, Position{X: 400, Y: 150}, router.Position)
}

func TestStaleRoutersArePruned(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "dev-1", DeviceData{DeviceName: "server-01"})

	g.ApplyDeviceReports([]DeviceReport{
		{NodeID: "dev-1", Status: StatusOnline, Gateway: "192.168.1.1"},
	}, true)
	require.Len(t, g.Nodes(), 2)

	// Device went dark; its gateway vanished from the cycle.
	g.ApplyDeviceReports([]DeviceReport{
		{NodeID: "dev-1", Status: StatusOffline},
	}, true)

	_, ok := g.Node(RouterNodeID("192.168.1.1"))
	assert.False(t, ok)
	assert.Empty(t, g.Edges())
	assert.Len(t, g.Nodes(), 1)
}

func TestAutoDetectOffLeavesTopologyAlone(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "dev-1", DeviceData{DeviceName: "server-01"})

	g.ApplyDeviceReports([]DeviceReport{
		{NodeID: "dev-1", Status: StatusOnline, Gateway: "192.168.1.1"},
	}, false)

	assert.Len(t, g.Nodes(), 1)
	assert.Empty(t, g.Edges())
}

func TestApplyRecentAlertsSetsAndClearsFiring(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "dev-1", DeviceData{DeviceName: "server-01"})
	mustAdd(t, g, "act-1", ActionData{Metric: "cpu", Operator: ">", Threshold: 90})
	mustAdd(t, g, "mail-1", EmailData{To: "ops@example.com"})
	require.NoError(t, g.Connect(Edge{ID: "e1", Source: "dev-1", Target: "act-1"}))
	require.NoError(t, g.Connect(Edge{ID: "e2", Source: "act-1", Target: "mail-1"}))

	g.ApplyRecentAlerts([]string{"act-1"})

	act, _ := g.Node("act-1")
	assert.True(t, act.Data.(ActionData).IsActive)
	mail, _ := g.Node("mail-1")
	assert.True(t, mail.Data.(EmailData).IsActive)

	// The feed is recomputed wholesale: an empty window clears everything.
	g.ApplyRecentAlerts(nil)

	act, _ = g.Node("act-1")
	assert.False(t, act.Data.(ActionData).IsActive)
	mail, _ = g.Node("mail-1")
	assert.False(t, mail.Data.(EmailData).IsActive)
}

func TestApplyRecentAlertsMatchesByNodeID(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "dev-1", DeviceData{DeviceName: "server-01"})
	mustAdd(t, g, "act-1", ActionData{Metric: "cpu", Operator: ">", Threshold: 90})
	mustAdd(t, g, "act-2", ActionData{Metric: "temp", Operator: ">=", Threshold: 75})
	require.NoError(t, g.Connect(Edge{ID: "e1", Source: "dev-1", Target: "act-1"}))

	// The feed lists fired action node ids; nothing else activates a node.
	g.ApplyRecentAlerts([]string{"act-1", "server-01 cpu > 90"})

	act, _ := g.Node("act-1")
	assert.True(t, act.Data.(ActionData).IsActive)
	other, _ := g.Node("act-2")
	assert.False(t, other.Data.(ActionData).IsActive)
}

func TestValidateCatchesStructuralDefects(t *testing.T) {
	g := NewGraph()
	mustAdd(t, g, "dev-1", DeviceData{DeviceName: "server-01"})
	require.NoError(t, g.Validate())

	g.edges = append(g.edges, Edge{ID: "e1", Source: "dev-1", Target: "ghost"})
	err := g.Validate()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}
