package cmd

import (
	"bytes"
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
	"gopkg.in/yaml.v3"

	"firestige.xyz/rohc/internal/core"
	"firestige.xyz/rohc/internal/core/crc"
	"firestige.xyz/rohc/internal/sink/report"
)

// irIP is an IR of the IP-only profile on CID 0 for 10.0.0.1 -> 10.0.0.2.
func irIP(sn uint16) []byte {
	b := []byte{0xFD, byte(core.ProfileIP), 0}
	b = append(b, 0x40, 17, 10, 0, 0, 1, 10, 0, 0, 2) // IPv4 static
	b = append(b, 0, 64, 0x12, 0x34, 0xE0)           // TOS TTL ID DF|RND|NBO
	b = append(b, byte(sn>>8), byte(sn))
	b[2] = crc.CRC8.Checksum(b)
	return b
}

func writeCapture(t *testing.T, dir string, port uint16, payloads ...[]byte) string {
	t.Helper()
	path := filepath.Join(dir, "in.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	for i, p := range payloads {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{2, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP,
			SrcIP: net.IPv4(192, 0, 2, 1), DstIP: net.IPv4(192, 0, 2, 2)}
		udp := &layers.UDP{SrcPort: 33000, DstPort: layers.UDPPort(port)}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
		buf := gopacket.NewSerializeBuffer()
		require.NoError(t, gopacket.SerializeLayers(buf,
			gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
			eth, ip, udp, gopacket.Payload(p)))

		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(1700000000, 0).Add(time.Duration(i) * 20 * time.Millisecond),
			CaptureLength: len(buf.Bytes()),
			Length:        len(buf.Bytes()),
		}
		require.NoError(t, w.WritePacket(ci, buf.Bytes()))
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestDecodeCommand(t *testing.T) {
	dir := t.TempDir()
	in := writeCapture(t, dir, 6000, irIP(100), []byte{0xE5, 0x40}, irIP(101)) // UO-0 on CID 5 has no context
	outPcap := filepath.Join(dir, "out.pcap")
	outReport := filepath.Join(dir, "report.yaml")

	out, err := execute(t, "decode", in, "--port", "6000", "-o", outPcap, "-r", outReport, "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "cid=0 profile=ip type=IR sn=100 len=20")
	assert.Contains(t, out, "3 packets: 2 decompressed, 1 failed\n")

	f, err := os.Open(outPcap)
	require.NoError(t, err)
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		data, _, err := r.ReadPacketData()
		require.NoError(t, err)
		pkt := gopacket.NewPacket(data, layers.LayerTypeIPv4, gopacket.Default)
		ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		require.True(t, ok)
		assert.Equal(t, "10.0.0.2", ip.DstIP.String())
		assert.Equal(t, layers.IPProtocolUDP, ip.Protocol)
	}

	data, err := os.ReadFile(outReport)
	require.NoError(t, err)
	var rep report.Report
	require.NoError(t, yaml.Unmarshal(data, &rep))
	assert.Equal(t, uint64(2), rep.Packets)
	assert.Equal(t, uint64(1), rep.Failures)
	require.Len(t, rep.Contexts, 2)
	assert.Equal(t, "full-context", rep.Contexts[0].State)
	assert.Equal(t, uint32(101), rep.Contexts[0].LastSN)
	assert.Equal(t, uint16(5), rep.Contexts[1].CID)
	assert.Equal(t, map[string]uint64{"no_context": 1}, rep.Contexts[1].Failures)
}

func TestDecodeMissingCapture(t *testing.T) {
	_, err := execute(t, "decode", filepath.Join(t.TempDir(), "missing.pcap"))
	assert.Error(t, err)
}

func TestDecodeRequiresCapture(t *testing.T) {
	_, err := execute(t, "decode")
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Equal(t, "VALID: small CIDs up to 15, profiles ip,rtp,udp,udplite\n", lastLine(out))

	path := filepath.Join(t.TempDir(), "rohc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rohc:
  decompressor:
    cid_type: large
    max_cid: 300
    profiles:
      rtp:
        enabled: false
`), 0o644))
	out, err = execute(t, "validate", "-c", path)
	require.NoError(t, err)
	assert.Equal(t, "VALID: large CIDs up to 300, profiles ip,udp,udplite\n", lastLine(out))

	require.NoError(t, os.WriteFile(path, []byte("rohc:\n  decompressor:\n    cid_type: huge\n"), 0o644))
	_, err = execute(t, "validate", "-c", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "INVALID")
}

func lastLine(s string) string {
	lines := bytes.Split([]byte(s), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			return string(lines[i]) + "\n"
		}
	}
	return ""
}
