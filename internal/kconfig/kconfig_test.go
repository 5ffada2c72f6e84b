package kconfig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleManifest = `{
	"bootVolume": "Macintosh HD",
	"pmmSizeBytes": 134217728,
	"timerHz": 1000,
	"filesystems": ["hfs", "fat32"],
	"mounts": [
		{"source": "ata0", "mountPoint": "/Volumes/Macintosh HD", "fsType": "hfs"}
	],
	"daemons": [
		{"name": "HFSd", "portCapacity": 4}
	],
	"metricsAddr": ":9100"
}`

func TestParseFullManifest(t *testing.T) {
	b, err := Parse([]byte(sampleManifest))
	require.NoError(t, err)
	require.Equal(t, "Macintosh HD", b.BootVolume)
	require.EqualValues(t, 134217728, b.PMMSizeBytes)
	require.EqualValues(t, 1000, b.TimerHz)
	require.Len(t, b.Filesystems, 2)
	require.Equal(t, "hfs", b.Filesystems[0].Name)
	require.Len(t, b.Mounts, 1)
	require.Equal(t, "/Volumes/Macintosh HD", b.Mounts[0].MountPoint)
	require.Len(t, b.Daemons, 1)
	require.Equal(t, "HFSd", b.Daemons[0].Name)
	require.Equal(t, 4, b.Daemons[0].PortCapacity)
	require.Equal(t, ":9100", b.MetricsAddr)
}

func TestParseDefaultsWhenOptionalFieldsOmitted(t *testing.T) {
	b, err := Parse([]byte(`{"bootVolume": "BOOT"}`))
	require.NoError(t, err)
	require.Equal(t, "BOOT", b.BootVolume)
	require.EqualValues(t, 64*1024*1024, b.PMMSizeBytes)
	require.EqualValues(t, 100, b.TimerHz)
	require.Empty(t, b.Filesystems)
	require.Empty(t, b.Mounts)
}

func TestParseMissingBootVolumeFails(t *testing.T) {
	_, err := Parse([]byte(`{}`))
	require.Error(t, err)
}

func TestParseRejectsUnknownKey(t *testing.T) {
	_, err := Parse([]byte(`{"bootVolume": "BOOT", "typoField": true}`))
	require.Error(t, err)
}
