package netcap_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/porsha/internal/netcap"
)

// writeCapture builds a small pcap file with one TCP flow seen in both
// directions plus a single UDP datagram.
func writeCapture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	writePacket(t, w, base, "10.0.0.1", "10.0.0.2", 51234, 80, false)
	writePacket(t, w, base.Add(time.Second), "10.0.0.2", "10.0.0.1", 80, 51234, false)
	writePacket(t, w, base.Add(2*time.Second), "10.0.0.1", "10.0.0.9", 40000, 53, true)
	return path
}

func writePacket(t *testing.T, w *pcapgo.Writer, ts time.Time, src, dst string, sport, dport uint16, udp bool) {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version: 4,
		IHL:     5,
		TTL:     64,
		SrcIP:   net.ParseIP(src),
		DstIP:   net.ParseIP(dst),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if udp {
		ip.Protocol = layers.IPProtocolUDP
		l4 := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
		require.NoError(t, l4.SetNetworkLayerForChecksum(ip))
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, l4, gopacket.Payload([]byte("dns?"))))
	} else {
		ip.Protocol = layers.IPProtocolTCP
		l4 := &layers.TCP{SrcPort: layers.TCPPort(sport), DstPort: layers.TCPPort(dport), SYN: true}
		require.NoError(t, l4.SetNetworkLayerForChecksum(ip))
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, l4))
	}

	data := buf.Bytes()
	err := w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}, data)
	require.NoError(t, err)
}

func TestAnalyzeAggregatesConversations(t *testing.T) {
	path := writeCapture(t)

	report, err := netcap.Analyze(context.Background(), path, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Summary.PacketCount)
	assert.NotEqual(t, "N/A", report.Summary.StartTime)
	assert.NotEqual(t, "N/A", report.Summary.EndTime)

	require.Len(t, report.Conversations, 2)

	// Both directions of the TCP flow fold into one conversation, endpoints
	// ordered lowest-first; the busier conversation sorts first.
	tcp := report.Conversations[0]
	assert.Equal(t, "TCP", tcp.Protocol)
	assert.Equal(t, "10.0.0.1", tcp.SrcIP)
	assert.Equal(t, uint16(51234), tcp.SrcPort)
	assert.Equal(t, "10.0.0.2", tcp.DstIP)
	assert.Equal(t, uint16(80), tcp.DstPort)
	assert.Equal(t, 2, tcp.PacketCount)

	udp := report.Conversations[1]
	assert.Equal(t, "UDP", udp.Protocol)
	assert.Equal(t, 1, udp.PacketCount)
}

func TestAnalyzeMissingFile(t *testing.T) {
	_, err := netcap.Analyze(context.Background(), filepath.Join(t.TempDir(), "nope.pcap"), nil)
	assert.Error(t, err)
}

func TestAnalyzeHonorsCancellation(t *testing.T) {
	path := writeCapture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := netcap.Analyze(ctx, path, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
