package runner

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keti-tsn/trafficd/internal/domain"
)

type fakeElevator struct {
	valid  bool
	called bool
}

func (f *fakeElevator) IsValid() bool { return f.valid }

func (f *fakeElevator) Command(argv []string) (*exec.Cmd, error) {
	f.called = true
	return exec.Command(argv[0], argv[1:]...), nil
}

func TestMausezahnBuildArgsStructured(t *testing.T) {
	tool := NewMausezahn(nil, nil)

	p := domain.PacketGenParams{Interface: "eth0", DestIP: "10.0.0.2"}
	p.ApplyDefaults()
	require.NoError(t, p.Validate())

	assert.Equal(t, []string{
		"eth0",
		"-Q", "100,0",
		"-t", "udp", "dp=5000,sp=5000",
		"-B", "10.0.0.2",
		"-P", "1000",
		"-c", "1000",
		"-d", "1msec",
	}, tool.buildArgs(p))
}

func TestMausezahnBuildArgsVariants(t *testing.T) {
	tool := NewMausezahn(nil, nil)

	t.Run("tcp with macs", func(t *testing.T) {
		p := domain.PacketGenParams{
			Interface:  "eth1",
			DestIP:     "10.0.0.3",
			PacketType: "tcp",
			DestPort:   8080,
			SrcMAC:     "00:11:22:33:44:55",
			DestMAC:    "66:77:88:99:aa:bb",
		}
		p.ApplyDefaults()
		args := tool.buildArgs(p)
		assert.Contains(t, args, "-a")
		assert.Contains(t, args, "00:11:22:33:44:55")
		assert.Contains(t, args, "dp=8080,sp=5000")
	})

	t.Run("icmp", func(t *testing.T) {
		p := domain.PacketGenParams{Interface: "eth0", DestIP: "10.0.0.4", PacketType: "icmp"}
		p.ApplyDefaults()
		args := tool.buildArgs(p)
		assert.Contains(t, args, "icmp")
		assert.Contains(t, args, "type=8")
	})

	t.Run("raw hex", func(t *testing.T) {
		p := domain.PacketGenParams{Interface: "eth0", PacketHex: "deadbeef", Count: 5, Delay: "100usec"}
		p.ApplyDefaults()
		assert.Equal(t,
			[]string{"eth0", "-c", "5", "-d", "100usec", "deadbeef"},
			tool.buildArgs(p))
	})
}

func TestMausezahnElevationRouting(t *testing.T) {
	t.Run("valid session is used", func(t *testing.T) {
		elev := &fakeElevator{valid: true}
		tool := NewMausezahn(nil, elev)
		cmd, err := tool.command([]string{"mausezahn", "eth0"})
		require.NoError(t, err)
		assert.True(t, elev.called)
		assert.NotContains(t, cmd.Args, "-n")
	})

	t.Run("fallback to non-interactive sudo", func(t *testing.T) {
		elev := &fakeElevator{valid: false}
		tool := NewMausezahn(nil, elev)
		cmd, err := tool.command([]string{"mausezahn", "eth0"})
		require.NoError(t, err)
		assert.False(t, elev.called)
		assert.Equal(t, []string{"sudo", "-n", "mausezahn", "eth0"}, cmd.Args)
	})
}

func TestMausezahnFinish(t *testing.T) {
	tool := NewMausezahn(nil, nil)

	p := domain.PacketGenParams{Interface: "eth0", DestIP: "10.0.0.2", Count: 500, PacketSize: 200}
	p.ApplyDefaults()

	stats, err := tool.finish(p, "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 500, stats["packets_sent"])
	assert.Equal(t, 100000, stats["bytes_sent"])

	_, err = tool.finish(p, "", "mz: permission denied", assert.AnError)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}
