// ABOUTME: mDNS advertisement and lookup of item stream sinks
// ABOUTME: Lets receivers on the local network find the websocket endpoint
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the DNS-SD service type for iqsource sinks
const ServiceType = "_iqsource._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int

	// Text records published with the service (default: path=/stream)
	Text []string
}

// Manager handles mDNS advertisement
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if len(config.Text) == 0 {
		config.Text = []string{"path=/stream"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Service builds the zone that Advertise publishes
func (m *Manager) Service(ips []net.IP) (*mdns.MDNSService, error) {
	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.config.Text,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return service, nil
}

// Advertise publishes the service until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := m.Service(ips)
	if err != nil {
		return err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// ServerInfo describes a discovered sink
type ServerInfo struct {
	Name string
	Host string
	Port int
	Text []string
}

// Addr returns host:port
func (s ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
}

// Browse queries the local network once and returns the sinks that answered
// within timeout
func Browse(timeout time.Duration) ([]ServerInfo, error) {
	entries := make(chan *mdns.ServiceEntry, 10)
	var found []ServerInfo
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			if entry.AddrV4 == nil {
				continue
			}
			server := ServerInfo{
				Name: entry.Name,
				Host: entry.AddrV4.String(),
				Port: entry.Port,
				Text: entry.InfoFields,
			}
			log.Printf("Discovered sink: %s at %s", server.Name, server.Addr())
			found = append(found, server)
		}
	}()

	params := &mdns.QueryParam{
		Service:     ServiceType,
		Domain:      "local",
		Timeout:     timeout,
		Entries:     entries,
		DisableIPv6: true,
	}

	err := mdns.Query(params)
	close(entries)
	<-done

	if err != nil {
		return found, fmt.Errorf("mdns query: %w", err)
	}
	return found, nil
}

// Stop withdraws the advertisement
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns the IPv4 addresses of interfaces that are up
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
