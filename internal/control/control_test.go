package control

import (
	"net"
	"testing"

	"github.com/cartomix/prolink/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCommandEncodesStateAtTargetOffset(t *testing.T) {
	packet := BuildCommand("vcdj", 7, 3, StateCued)

	assert.Equal(t, device.ProlinkHeader, packet[0:10])
	assert.Equal(t, byte(controlSubtype), packet[10])

	maskStart := len(packet) - 4
	mask := packet[maskStart:]
	assert.Equal(t, byte(StateCued), mask[2]) // target id 3 -> index 2
	for i, b := range mask {
		if i != 2 {
			assert.Zero(t, b)
		}
	}
}

func TestSendCommandWritesToSocket(t *testing.T) {
	server, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	require.NoError(t, err)
	defer server.Close()

	client, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	require.NoError(t, err)
	defer client.Close()

	err = SendCommand(client, server.LocalAddr().(*net.UDPAddr), "vcdj", 7, 1, StatePlaying)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, _, err := server.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, device.ProlinkHeader, buf[0:10])
	_ = n
}
