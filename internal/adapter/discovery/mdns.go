// Package discovery advertises and finds mesh agents on the local network
// via mDNS/DNS-SD.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	serviceType = "_agentmesh._tcp"
	mdnsDomain  = "local."
	scanTimeout = 5 * time.Second
)

// Peer is one agent endpoint found on the local network.
type Peer struct {
	Name     string
	Endpoint string
	Metadata map[string]string
}

// MDNS advertises this mesh instance and browses for peer agents.
type MDNS struct {
	logger *slog.Logger
}

func NewMDNS(logger *slog.Logger) *MDNS {
	return &MDNS{logger: logger}
}

// Scan browses for agentmesh services on the local network. It blocks for
// the scan window and returns everything seen.
func (d *MDNS) Scan(ctx context.Context) ([]Peer, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var mu sync.Mutex
	var peers []Peer
	var wg sync.WaitGroup

	scanCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			peer := entryToPeer(entry)
			mu.Lock()
			peers = append(peers, peer)
			mu.Unlock()
			d.logger.Debug("mdns discovered agent", "name", peer.Name, "endpoint", peer.Endpoint)
		}
	}()

	if err := resolver.Browse(scanCtx, serviceType, mdnsDomain, entries); err != nil {
		cancel()
		// Wait for the consumer goroutine to drain the channel before returning.
		wg.Wait()
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	<-scanCtx.Done()
	wg.Wait()

	mu.Lock()
	result := make([]Peer, len(peers))
	copy(result, peers)
	mu.Unlock()

	return result, nil
}

// Advertise registers this instance on the local network. It blocks until
// ctx is cancelled; call it in a goroutine.
func (d *MDNS) Advertise(ctx context.Context, name string, port int, metadata map[string]string) error {
	txt := make([]string, 0, len(metadata))
	for k, v := range metadata {
		txt = append(txt, k+"="+v)
	}

	server, err := zeroconf.Register(name, serviceType, mdnsDomain, port, txt, nil)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}

	d.logger.Info("mdns advertising", "name", name, "port", port)
	<-ctx.Done()
	server.Shutdown()
	return nil
}

func entryToPeer(entry *zeroconf.ServiceEntry) Peer {
	var endpoint string
	if len(entry.AddrIPv4) > 0 {
		endpoint = fmt.Sprintf("http://%s:%d", entry.AddrIPv4[0], entry.Port)
	} else if len(entry.AddrIPv6) > 0 {
		endpoint = fmt.Sprintf("http://[%s]:%d", entry.AddrIPv6[0], entry.Port)
	}

	return Peer{
		Name:     entry.ServiceRecord.Instance,
		Endpoint: endpoint,
		Metadata: parseTXTRecords(entry.Text),
	}
}

func parseTXTRecords(txt []string) map[string]string {
	m := make(map[string]string, len(txt))
	for _, t := range txt {
		parts := strings.SplitN(t, "=", 2)
		if len(parts) == 2 {
			m[parts[0]] = parts[1]
		}
	}
	return m
}
