package s7

import (
	"context"
	"net"
	"sync"
	"time"
)

// DiscoveredDevice describes one S7 endpoint found by Discover or
// DiscoverSubnet.
type DiscoveredDevice struct {
	Host    string
	Info    ModuleInfo
	Status  CPUStatus
	PDUSize uint16
}

// Discover probes hosts concurrently for an S7-reachable endpoint,
// attempting the COTP+COMM_SETUP handshake and, on success, a CPU info
// read. Hosts that do not answer within timeout are silently skipped.
func Discover(ctx context.Context, hosts []string, timeout time.Duration, opts ...Option) []DiscoveredDevice {
	results := make(chan *DiscoveredDevice, len(hosts))
	var wg sync.WaitGroup
	for _, h := range hosts {
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			results <- probeS7(ctx, host, timeout, opts...)
		}(h)
	}
	wg.Wait()
	close(results)

	var found []DiscoveredDevice
	for d := range results {
		if d != nil {
			found = append(found, *d)
		}
	}
	return found
}

// DiscoverSubnet expands cidr (e.g. "192.168.0.0/24") into host addresses
// and runs Discover over them.
func DiscoverSubnet(ctx context.Context, cidr string, timeout time.Duration, opts ...Option) ([]DiscoveredDevice, error) {
	hosts, err := expandCIDR(cidr)
	if err != nil {
		return nil, err
	}
	return Discover(ctx, hosts, timeout, opts...), nil
}

func probeS7(ctx context.Context, host string, timeout time.Duration, opts ...Option) *DiscoveredDevice {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	allOpts := append([]Option{WithTimeout(timeout)}, opts...)
	c := NewClient(host, allOpts...)
	if err := c.Connect(ctx); err != nil {
		return nil
	}
	defer c.Disconnect()

	dev := &DiscoveredDevice{Host: host, PDUSize: c.PDUSize()}
	if status, err := c.GetCPUStatus(ctx); err == nil {
		dev.Status = status
	}
	if info, err := c.GetCPUInfo(ctx); err == nil {
		dev.Info = info
	}
	return dev
}

// expandCIDR enumerates every host address in cidr, excluding the network
// and broadcast addresses for subnets larger than /31.
func expandCIDR(cidr string) ([]string, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, &AddressFormatError{Text: cidr, Reason: "invalid CIDR"}
	}

	var hosts []string
	for cur := ip.Mask(ipnet.Mask); ipnet.Contains(cur); inc(cur) {
		hosts = append(hosts, cur.String())
	}
	ones, bits := ipnet.Mask.Size()
	if bits-ones > 1 && len(hosts) > 2 {
		hosts = hosts[1 : len(hosts)-1] // drop network and broadcast addresses
	}
	return hosts, nil
}

func inc(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			break
		}
	}
}
