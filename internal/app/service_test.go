package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ifbcloud/internal/ifb"
)

type fakePortal struct {
	instances  []ifb.Instance
	disks      []ifb.Disk
	catalog    ifb.ApplianceCatalog
	catalogErr error

	started     []ifb.StartRequest
	stopped     []string
	policies    []ifb.PollPolicy
	diskLookups int
}

var _ Portal = (*fakePortal)(nil)

func (f *fakePortal) ListInstances(context.Context) ([]ifb.Instance, error) {
	return f.instances, nil
}

func (f *fakePortal) ListDisks(context.Context) ([]ifb.Disk, error) {
	return f.disks, nil
}

func (f *fakePortal) Appliances() (ifb.ApplianceCatalog, error) {
	return f.catalog, f.catalogErr
}

func (f *fakePortal) StartInstance(_ context.Context, req ifb.StartRequest) error {
	f.started = append(f.started, req)
	f.instances = append(f.instances, ifb.Instance{ID: "900", Name: req.Name, IP: "10.9.9.9"})
	return nil
}

func (f *fakePortal) StopInstance(_ context.Context, id string) error {
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakePortal) ResolveIPWithPolicy(_ context.Context, sel ifb.InstanceSelector, policy ifb.PollPolicy) (string, error) {
	f.policies = append(f.policies, policy)
	for _, in := range f.instances {
		if in.Name == sel.Name || in.ID == sel.ID {
			return in.IP, nil
		}
	}
	return "", ifb.ErrInstanceNotFound
}

func (f *fakePortal) ResolveID(_ context.Context, name string) (string, bool, error) {
	for _, in := range f.instances {
		if in.Name == name {
			return in.ID, true, nil
		}
	}
	return "", false, nil
}

func (f *fakePortal) ResolveDiskUUID(_ context.Context, name string) (string, bool, error) {
	f.diskLookups++
	for _, d := range f.disks {
		if d.Name == name {
			return d.UUID, true, nil
		}
	}
	return "", false, nil
}

func newTestService(t *testing.T) (*Service, *fakePortal) {
	t.Helper()
	portal := &fakePortal{
		instances: []ifb.Instance{{ID: "101", Name: "web", IP: "10.0.0.5"}},
		disks:     []ifb.Disk{{Name: "scratch", Size: "100GB", UUID: "uuid-1"}},
		catalog:   ifb.NewApplianceCatalog([]ifb.Appliance{{ID: 215, Name: "Galaxy"}, {ID: 12, Name: "Ubuntu"}}),
	}
	svc, err := NewService(portal, DefaultConfig(), nil)
	require.NoError(t, err)
	return svc, portal
}

func TestNewServiceRequiresPortal(t *testing.T) {
	_, err := NewService(nil, DefaultConfig(), nil)
	require.Error(t, err)
}

func TestStartUsesDefaults(t *testing.T) {
	svc, portal := newTestService(t)

	res, err := svc.Start(context.Background(), StartParams{Name: "worker"})
	require.NoError(t, err)
	assert.Equal(t, StartResult{Name: "worker", IP: "10.9.9.9"}, res)

	require.Len(t, portal.started, 1)
	assert.Equal(t, ifb.StartRequest{Name: "worker", Type: DefaultInstanceType, ApplianceID: 215}, portal.started[0])
	require.Len(t, portal.policies, 1)
	assert.Equal(t, 5, portal.policies[0].Attempts)
}

func TestStartResolvesApplianceAndDiskNames(t *testing.T) {
	svc, portal := newTestService(t)

	_, err := svc.Start(context.Background(), StartParams{
		Name:      "worker",
		Type:      "c3.large",
		Appliance: "Ubuntu",
		DiskName:  "scratch",
	})
	require.NoError(t, err)
	require.Len(t, portal.started, 1)
	assert.Equal(t, 12, portal.started[0].ApplianceID)
	assert.Equal(t, "uuid-1", portal.started[0].DiskUUID)
	assert.Equal(t, "c3.large", portal.started[0].Type)
}

func TestStartUnknownTypeBeforeLookups(t *testing.T) {
	svc, portal := newTestService(t)

	_, err := svc.Start(context.Background(), StartParams{Name: "worker", Type: "c9.bogus", DiskName: "nope", Appliance: "Windows"})
	require.ErrorIs(t, err, ifb.ErrUnknownInstanceType)
	assert.Equal(t, 0, portal.diskLookups)
	assert.Empty(t, portal.started)
}

func TestStartHonoursConfiguredTypes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InstanceTypes = map[string]int{"c4.tiny": 42}
	portal := &fakePortal{catalog: ifb.NewApplianceCatalog([]ifb.Appliance{{ID: 215, Name: "Galaxy"}})}
	svc, err := NewService(portal, cfg, nil)
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), StartParams{Name: "worker"})
	require.ErrorIs(t, err, ifb.ErrUnknownInstanceType)

	_, err = svc.Start(context.Background(), StartParams{Name: "worker", Type: "c4.tiny"})
	require.NoError(t, err)
	require.Len(t, portal.started, 1)
}

func TestStartUnknownDisk(t *testing.T) {
	svc, portal := newTestService(t)

	_, err := svc.Start(context.Background(), StartParams{Name: "worker", DiskName: "nope"})
	require.ErrorIs(t, err, ifb.ErrUnknownDisk)
	assert.Empty(t, portal.started)
}

func TestStartUnknownApplianceName(t *testing.T) {
	svc, portal := newTestService(t)

	_, err := svc.Start(context.Background(), StartParams{Name: "worker", Appliance: "Windows"})
	require.ErrorIs(t, err, ifb.ErrUnknownAppliance)
	assert.Contains(t, err.Error(), "Galaxy, Ubuntu")
	assert.Empty(t, portal.started)
}

func TestStartRejectsBothApplianceSelectors(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Start(context.Background(), StartParams{Name: "worker", Appliance: "Galaxy", ApplianceID: 215})
	require.ErrorIs(t, err, ifb.ErrInvalidArgument)
}

func TestStopByName(t *testing.T) {
	svc, portal := newTestService(t)

	id, err := svc.Stop(context.Background(), StopParams{Name: "web"})
	require.NoError(t, err)
	assert.Equal(t, "101", id)
	assert.Equal(t, []string{"101"}, portal.stopped)
}

func TestStopUnknownName(t *testing.T) {
	svc, portal := newTestService(t)

	_, err := svc.Stop(context.Background(), StopParams{Name: "ghost"})
	require.ErrorIs(t, err, ifb.ErrInstanceNotFound)
	assert.Empty(t, portal.stopped)
}

func TestStopRequiresOneSelector(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Stop(context.Background(), StopParams{})
	require.ErrorIs(t, err, ifb.ErrInvalidArgument)
	_, err = svc.Stop(context.Background(), StopParams{Name: "web", ID: "101"})
	require.ErrorIs(t, err, ifb.ErrInvalidArgument)
}

func TestResolveIPUsesConfiguredPolicy(t *testing.T) {
	svc, portal := newTestService(t)

	ip, err := svc.ResolveIP(context.Background(), ifb.InstanceSelector{ID: "101"}, ifb.PollPolicy{})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", ip)
	assert.Equal(t, svc.poll, portal.policies[0])

	_, err = svc.ResolveIP(context.Background(), ifb.InstanceSelector{ID: "101"}, ifb.PollPolicy{Attempts: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, portal.policies[1].Attempts)
}
