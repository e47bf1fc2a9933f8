package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThroughputParamsDefaults(t *testing.T) {
	p := ThroughputParams{}
	p.ApplyDefaults()
	assert.Equal(t, "127.0.0.1", p.Host)
	assert.Equal(t, 5201, p.Port)
	assert.Equal(t, 10, p.Duration)
	assert.Equal(t, "100M", p.Bandwidth)
	assert.NoError(t, p.Validate())
}

func TestThroughputParamsValidate(t *testing.T) {
	cases := []struct {
		name string
		p    ThroughputParams
	}{
		{"bad port", ThroughputParams{Host: "h", Port: 70000, Duration: 5}},
		{"zero port", ThroughputParams{Host: "h", Port: 0, Duration: 5}},
		{"negative duration", ThroughputParams{Host: "h", Port: 5201, Duration: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			require.Error(t, err)
			assert.True(t, IsInvalidParams(err))
		})
	}
}

func TestLatencyParamsModes(t *testing.T) {
	p := LatencyParams{}
	p.ApplyDefaults()
	assert.Equal(t, LatencyModePingPong, p.Mode)
	assert.Equal(t, 11111, p.Port)
	assert.Equal(t, 64, p.MsgSize)
	assert.False(t, p.MultiSize())
	assert.NoError(t, p.Validate())

	p.Mode = "burst"
	err := p.Validate()
	require.Error(t, err)
	assert.True(t, IsInvalidParams(err))

	p.Mode = LatencyModeUnderLoad
	p.MsgSizes = []int{64, 512, 1400}
	assert.True(t, p.MultiSize())
	assert.NoError(t, p.Validate())

	p.MsgSizes = []int{64, 0}
	assert.Error(t, p.Validate())
}

func TestPacketGenParamsModeExclusion(t *testing.T) {
	t.Run("structured defaults", func(t *testing.T) {
		p := PacketGenParams{Interface: "eth0", DestIP: "10.0.0.2"}
		p.ApplyDefaults()
		require.NotNil(t, p.VLANID)
		assert.Equal(t, 100, *p.VLANID)
		assert.Equal(t, "udp", p.PacketType)
		assert.Equal(t, 5000, p.DestPort)
		assert.NoError(t, p.Validate())
		assert.False(t, p.Custom())
		assert.Equal(t, 1000, p.PayloadBytes())
	})

	t.Run("hex and dest_ip are exclusive", func(t *testing.T) {
		p := PacketGenParams{Interface: "eth0", DestIP: "10.0.0.2", PacketHex: "deadbeef"}
		p.ApplyDefaults()
		err := p.Validate()
		require.Error(t, err)
		assert.True(t, IsInvalidParams(err))
	})

	t.Run("neither mode selected", func(t *testing.T) {
		p := PacketGenParams{Interface: "eth0", Count: 1, Delay: "1msec"}
		assert.Error(t, p.Validate())
	})

	t.Run("hex mode", func(t *testing.T) {
		p := PacketGenParams{Interface: "eth0", PacketHex: "ff:ff:ff:ff:ff:ff:00:11:22:33:44:55"}
		p.ApplyDefaults()
		assert.Nil(t, p.VLANID, "hex mode must not inject a default vlan")
		assert.NoError(t, p.Validate())
		assert.True(t, p.Custom())
		assert.Equal(t, 12, p.PayloadBytes())
	})

	t.Run("bad hex", func(t *testing.T) {
		p := PacketGenParams{Interface: "eth0", PacketHex: "zz11", Count: 1}
		assert.Error(t, p.Validate())
		p.PacketHex = "abc" // odd length
		assert.Error(t, p.Validate())
	})
}

func TestPacketGenParamsRanges(t *testing.T) {
	base := func() PacketGenParams {
		p := PacketGenParams{Interface: "eth0", DestIP: "10.0.0.2"}
		p.ApplyDefaults()
		return p
	}

	p := base()
	bad := 4096
	p.VLANID = &bad
	assert.Error(t, p.Validate())

	p = base()
	p.PCP = 8
	assert.Error(t, p.Validate())

	p = base()
	p.PacketType = "sctp"
	assert.Error(t, p.Validate())

	p = base()
	p.Count = 0
	assert.Error(t, p.Validate())
}

func TestVideoParams(t *testing.T) {
	p := VideoParams{DestIP: "192.168.1.10"}
	p.ApplyDefaults()
	assert.Equal(t, "640x480", p.Resolution)
	assert.Equal(t, "h264", p.Codec)
	require.NoError(t, p.Validate())

	w, h, err := p.Dimensions()
	require.NoError(t, err)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)

	p.Resolution = "640"
	assert.Error(t, p.Validate())
	p.Resolution = "0x480"
	assert.Error(t, p.Validate())

	p.Resolution = "1280x720"
	p.Codec = "vp9"
	err = p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "h264")
}
