// Package netcap summarizes packet captures: whole-capture statistics plus
// direction-normalized conversation aggregation. Packet decoding is delegated
// to gopacket; captures are streamed rather than loaded whole.
package netcap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"

	"github.com/Ashfaaq98/porsha/internal/dispatch"
	"github.com/Ashfaaq98/porsha/internal/models"
	"github.com/Ashfaaq98/porsha/internal/utils"
)

// progressInterval is how many packets pass between progress notifications.
const progressInterval = 5000

type endpoint struct {
	ip   string
	port uint16
}

func (e endpoint) less(other endpoint) bool {
	if e.ip != other.ip {
		return e.ip < other.ip
	}
	return e.port < other.port
}

type convKey struct {
	protocol string
	a, b     endpoint
}

// Analyze streams the capture at path and aggregates conversations. Both
// directions of a flow count as one conversation: the endpoint pair is
// ordered lowest-first before aggregation.
func Analyze(ctx context.Context, path string, progress func(string)) (*models.CaptureReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open capture %s", path)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read capture header %s", path)
	}

	src := gopacket.NewPacketSource(r, r.LinkType())
	src.Lazy = true
	src.NoCopy = true

	var count int
	var first, last time.Time
	conversations := make(map[convKey]int)

	for pkt := range src.Packets() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		count++
		ts := pkt.Metadata().Timestamp
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if last.IsZero() || ts.After(last) {
			last = ts
		}

		if key, ok := conversationKey(pkt); ok {
			conversations[key]++
		}

		if progress != nil && count%progressInterval == 0 {
			progress(fmt.Sprintf("Processed %d packets...", count))
		}
	}

	report := &models.CaptureReport{
		Summary: models.CaptureSummary{
			PacketCount: count,
			StartTime:   utils.FormatTimestamp(first),
			EndTime:     utils.FormatTimestamp(last),
		},
		Conversations: sortedConversations(conversations),
	}
	utils.LogInfo("capture analyzed", map[string]string{
		"capture":       path,
		"packets":       fmt.Sprintf("%d", count),
		"conversations": fmt.Sprintf("%d", len(report.Conversations)),
	})
	return report, nil
}

func conversationKey(pkt gopacket.Packet) (convKey, bool) {
	var srcIP, dstIP string
	switch ip := pkt.Layer(layers.LayerTypeIPv4).(type) {
	case *layers.IPv4:
		srcIP, dstIP = ip.SrcIP.String(), ip.DstIP.String()
	default:
		ip6, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		if !ok {
			return convKey{}, false
		}
		srcIP, dstIP = ip6.SrcIP.String(), ip6.DstIP.String()
	}

	protocol := "IP"
	var srcPort, dstPort uint16
	if tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		protocol = "TCP"
		srcPort, dstPort = uint16(tcp.SrcPort), uint16(tcp.DstPort)
	} else if udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		protocol = "UDP"
		srcPort, dstPort = uint16(udp.SrcPort), uint16(udp.DstPort)
	}

	a := endpoint{ip: srcIP, port: srcPort}
	b := endpoint{ip: dstIP, port: dstPort}
	if b.less(a) {
		a, b = b, a
	}
	return convKey{protocol: protocol, a: a, b: b}, true
}

func sortedConversations(counts map[convKey]int) []models.Conversation {
	out := make([]models.Conversation, 0, len(counts))
	for key, count := range counts {
		out = append(out, models.Conversation{
			Protocol:    key.protocol,
			SrcIP:       key.a.ip,
			SrcPort:     key.a.port,
			DstIP:       key.b.ip,
			DstPort:     key.b.port,
			PacketCount: count,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PacketCount != out[j].PacketCount {
			return out[i].PacketCount > out[j].PacketCount
		}
		if out[i].SrcIP != out[j].SrcIP {
			return out[i].SrcIP < out[j].SrcIP
		}
		return out[i].SrcPort < out[j].SrcPort
	})
	return out
}

// Executor adapts Analyze to the task dispatcher.
func Executor() dispatch.ExecutorFunc {
	return func(ctx context.Context, t *dispatch.Task, req dispatch.Request) (dispatch.Result, error) {
		t.Progress(fmt.Sprintf("Analyzing capture: %s...", filepath.Base(req.FilePath)))
		report, err := Analyze(ctx, req.FilePath, t.Progress)
		if err != nil {
			return dispatch.Result{}, err
		}
		return dispatch.Result{Kind: dispatch.KindAnalyzeCapture, Capture: report}, nil
	}
}
