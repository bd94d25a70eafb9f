package net

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service PixelBoard servers announce.
const ServiceType = "_pixelboard._tcp"

// Found is one server seen during a browse.
type Found struct {
	Instance string
	Addr     string
	Info     []string
}

// Advertise announces a server listening on port. Shut the returned server
// down to withdraw the announcement.
func Advertise(port int, info ...string) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}
	if len(info) == 0 {
		info = []string{"PixelBoard"}
	}

	service, err := mdns.NewMDNSService(host, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("mdns server: %w", err)
	}
	slog.Info("advertising over mdns", "service", ServiceType, "instance", host, "port", port)
	return server, nil
}

// Browse queries the LAN for servers for up to timeout and calls found for
// each one that has an IPv4 address. It returns early when ctx is done.
func Browse(ctx context.Context, timeout time.Duration, found func(Found)) error {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if f, ok := toFound(e); ok {
				found(f)
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	errc := make(chan error, 1)
	go func() { errc <- mdns.Query(params) }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
		// Query still owns entries until it returns.
		<-errc
	}
	close(entries)
	<-done
	if err != nil {
		return fmt.Errorf("mdns browse: %w", err)
	}
	return nil
}

func toFound(e *mdns.ServiceEntry) (Found, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Found{}, false
	}
	return Found{
		Instance: e.Name,
		Addr:     fmt.Sprintf("%s:%d", e.AddrV4, e.Port),
		Info:     e.InfoFields,
	}, true
}
