package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	ble "github.com/go-ble/ble"
	blehci "github.com/go-ble/ble/linux/hci"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b0rdst31n/bluing/internal/hci"
)

// fakeGattClient serves a canned profile.
type fakeGattClient struct {
	profile  *ble.Profile
	values   map[string][]byte
	readErr  error
	canceled bool
}

func (c *fakeGattClient) DiscoverProfile(bool) (*ble.Profile, error) {
	return c.profile, nil
}

func (c *fakeGattClient) ReadCharacteristic(ch *ble.Characteristic) ([]byte, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.values[ch.UUID.String()], nil
}

func (c *fakeGattClient) CancelConnection() error {
	c.canceled = true
	return nil
}

func heartRateProfile() *ble.Profile {
	hrm := &ble.Characteristic{
		UUID:     ble.MustParse("2a37"),
		Property: ble.CharNotify,
		Descriptors: []*ble.Descriptor{
			{UUID: ble.MustParse("2902")},
		},
	}
	battery := &ble.Characteristic{
		UUID:     ble.MustParse("2a19"),
		Property: ble.CharRead,
	}
	return &ble.Profile{Services: []*ble.Service{
		{UUID: ble.MustParse("180d"), Characteristics: []*ble.Characteristic{hrm}},
		{UUID: ble.MustParse("180f"), Characteristics: []*ble.Characteristic{battery}},
	}}
}

func newGattFixture(client *fakeGattClient) *GattScanner {
	s := NewGattScanner(quietLogger())
	s.dial = func(context.Context, string, hci.BDAddr, hci.AddrType) (gattClient, error) {
		return client, nil
	}
	return s
}

func TestGattScanner_Enumerate(t *testing.T) {
	// GOAL: Services keep discovery order, readable characteristics get a
	// best-effort value, and the connection is torn down.
	client := &fakeGattClient{
		profile: heartRateProfile(),
		values:  map[string][]byte{"2a19": {0x64}},
	}
	s := newGattFixture(client)

	result, err := s.Enumerate(context.Background(), "hci0",
		addr(t, "11:22:33:44:55:66"), hci.AddrTypePublic)
	require.NoError(t, err)

	gatt := result.(*GATTResult)
	services := gatt.Services()
	require.Len(t, services, 2)
	assert.Equal(t, "180d", services[0].UUID, "discovery order MUST be preserved")
	assert.Equal(t, "Heart Rate", services[0].Name)
	assert.Equal(t, "180f", services[1].UUID)

	hrm := services[0].Characteristics[0]
	assert.Equal(t, []string{"notify"}, hrm.Properties)
	assert.Empty(t, hrm.Value, "non-readable characteristics MUST NOT be read")
	require.Len(t, hrm.Descriptors, 1)
	assert.Equal(t, "Client Characteristic Configuration", hrm.Descriptors[0].Name)

	battery := services[1].Characteristics[0]
	assert.Equal(t, "64", battery.Value)

	assert.True(t, client.canceled, "connection MUST be canceled")
}

func TestPeerAddr(t *testing.T) {
	// GOAL: A random target dials with the random address marker; a bare
	// address would silently be dialed as public.
	target := addr(t, "F1:22:33:44:55:66")

	random := peerAddr(target, hci.AddrTypeRandom)
	ra, ok := random.(blehci.RandomAddress)
	require.True(t, ok, "a random target MUST carry the random address marker")
	assert.Equal(t, "f1:22:33:44:55:66", ra.String())

	public := peerAddr(target, hci.AddrTypePublic)
	_, ok = public.(blehci.RandomAddress)
	assert.False(t, ok)
	assert.Equal(t, "f1:22:33:44:55:66", public.String())
}

func TestGattScanner_AddrTypeReachesDial(t *testing.T) {
	client := &fakeGattClient{profile: heartRateProfile()}
	s := NewGattScanner(quietLogger())
	var got hci.AddrType
	s.dial = func(_ context.Context, _ string, _ hci.BDAddr, addrType hci.AddrType) (gattClient, error) {
		got = addrType
		return client, nil
	}

	_, err := s.Enumerate(context.Background(), "hci0",
		addr(t, "F1:22:33:44:55:66"), hci.AddrTypeRandom)
	require.NoError(t, err)
	assert.Equal(t, hci.AddrTypeRandom, got)
}

func TestGattScanner_ValueReadIsBestEffort(t *testing.T) {
	client := &fakeGattClient{
		profile: heartRateProfile(),
		readErr: errors.New("att: insufficient authentication"),
	}
	s := newGattFixture(client)

	result, err := s.Enumerate(context.Background(), "hci0",
		addr(t, "11:22:33:44:55:66"), hci.AddrTypePublic)
	require.NoError(t, err, "a failed value read MUST NOT fail enumeration")
	assert.Empty(t, result.(*GATTResult).Services()[1].Characteristics[0].Value)
}

func TestGATTResult_RenderAndStore(t *testing.T) {
	client := &fakeGattClient{profile: heartRateProfile(), values: map[string][]byte{"2a19": {0x64}}}
	s := newGattFixture(client)

	result, err := s.Enumerate(context.Background(), "hci0",
		addr(t, "11:22:33:44:55:66"), hci.AddrTypePublic)
	require.NoError(t, err)

	var rendered bytes.Buffer
	require.NoError(t, result.Render(&rendered))
	assert.Contains(t, rendered.String(), "Service 180d (Heart Rate)")
	assert.Contains(t, rendered.String(), "Characteristic 2a37 (Heart Rate Measurement) [notify]")

	path, err := result.Store(t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var stored storedGATTResult
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, "11:22:33:44:55:66", stored.Addr)
	require.Len(t, stored.Services, 2)
	assert.Equal(t, "180d", stored.Services[0].UUID, "stored order MUST match discovery order")
}
