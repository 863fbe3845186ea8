package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const xctraceOutput = `== Devices ==
Builder’s MacBook Pro (14.2.1) (00006000-000A1B2C3D4E801E)
Jane’s iPhone (17.2) (00008110-001234567890801E)
Old iPad (12.5.7) [a1b2c3d4e5f60718293a4b5c6d7e8f9012345678]
garbage line without udid

== Devices Offline ==
Spare iPhone (16.4) (00008030-000999888777001E)

== Simulators ==
iPhone 15 (17.2) (5C2C5E5F-1A2B-4C3D-8E9F-0A1B2C3D4E5F)
Apple TV 4K (3rd generation) (17.2) (7D1E2F3A-4B5C-6D7E-8F9A-0B1C2D3E4F5A)
`

func TestParseDeviceListSections(t *testing.T) {
	devs := ParseDeviceList(xctraceOutput)
	require.Len(t, devs, 3)

	assert.Equal(t, "Jane’s iPhone", devs[0].Name)
	assert.Equal(t, "17.2", devs[0].OSVersion)
	assert.Equal(t, "00008110-001234567890801E", devs[0].UDID)
	assert.True(t, devs[0].Available)
	assert.Equal(t, TargetDevice, devs[0].Kind)

	assert.Equal(t, "Old iPad", devs[1].Name)
	assert.Equal(t, "a1b2c3d4e5f60718293a4b5c6d7e8f9012345678", devs[1].UDID)

	assert.Equal(t, "Spare iPhone", devs[2].Name)
	assert.False(t, devs[2].Available)
}

func TestParseDeviceListDropsHostMac(t *testing.T) {
	for _, d := range ParseDeviceList(xctraceOutput) {
		assert.NotEqual(t, "00006000-000A1B2C3D4E801E", d.UDID)
	}

	hostOnly := ParseDeviceList("== Devices ==\nBuilder’s MacBook Pro (14.2.1) (00006000-000A1B2C3D4E801E)\n== Simulators ==\n")
	assert.Empty(t, hostOnly)

	// The host is the first record, not the first line.
	devs := ParseDeviceList("== Devices ==\nnoise\nMac (14.2.1) (00006000-000A1B2C3D4E801E)\nPhone (17.2) (00008110-001234567890801E)\n")
	require.Len(t, devs, 1)
	assert.Equal(t, "Phone", devs[0].Name)

	// An offline section never holds the host.
	devs = ParseDeviceList("== Devices Offline ==\nSpare (16.4) (00008030-000999888777001E)\n")
	require.Len(t, devs, 1)
}

func TestParseDeviceListInstrumentsFormat(t *testing.T) {
	text := "Known Devices:\n" +
		"Builder’s MacBook Pro [0A1B2C3D-4E5F-6071-8293-A4B5C6D7E8F9]\n" +
		"Jane’s iPhone (12.1) [11112222333344445555666677778888aaaabbbb]\n" +
		"iPhone X (12.1) [ABCDEF12-3456-7890-ABCD-EF1234567890] (Simulator)\n"
	devs := ParseDeviceList(text)
	require.Len(t, devs, 1)
	assert.Equal(t, "Jane’s iPhone", devs[0].Name)
}

func TestParseDeviceListSkipsSimulatorMarkers(t *testing.T) {
	text := "iPhone X (12.1) [ABCDEF12-3456-7890-ABCD-EF1234567890] (Simulator)\n" +
		"Real Phone (12.1) [11112222333344445555666677778888aaaabbbb]\n"
	devs := ParseDeviceList(text)
	require.Len(t, devs, 1)
	assert.Equal(t, "Real Phone", devs[0].Name)
}

func TestParseDeviceListWithoutVersion(t *testing.T) {
	devs := ParseDeviceList("Lab iPad [ABCDEF12-3456-7890-ABCD-EF1234567890]  \r\n")
	require.Len(t, devs, 1)
	assert.Equal(t, "Lab iPad", devs[0].Name)
	assert.Empty(t, devs[0].OSVersion)
	assert.Equal(t, "Lab iPad", devs[0].DisplayName())
}

func TestParseDeviceListEmpty(t *testing.T) {
	devs := ParseDeviceList("")
	assert.NotNil(t, devs)
	assert.Empty(t, devs)
}

func TestDisplayName(t *testing.T) {
	d := Device{Name: "iPhone 15", OSVersion: "iOS 17.2"}
	assert.Equal(t, "iPhone 15 (iOS 17.2)", d.DisplayName())
}

func TestListPhysicalDevicesRunsXctrace(t *testing.T) {
	fc := &fakeCommander{}
	fc.on("xcrun xctrace list devices", fakeCall{stdout: xctraceOutput})
	p := &Pipeline{Cmd: fc}

	devs, err := p.ListPhysicalDevices(context.Background())
	require.NoError(t, err)
	assert.Len(t, devs, 3)
}
