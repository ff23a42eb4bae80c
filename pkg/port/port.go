package port

import (
	"fmt"
	"sync"

	"github.com/sonic-net/linkmgrd-go/pkg/config"
	"github.com/sonic-net/linkmgrd-go/pkg/errdefs"
	"github.com/sonic-net/linkmgrd-go/pkg/log"
	"github.com/sonic-net/linkmgrd-go/pkg/switchcause"
)

// HealthLabel is the composite health published alongside mux state
// (spec.md §4.5/§6).
type HealthLabel int

const (
	HealthUninitialized HealthLabel = iota
	HealthHealthy
	HealthUnhealthy
)

func (h HealthLabel) String() string {
	switch h {
	case HealthHealthy:
		return "Healthy"
	case HealthUnhealthy:
		return "Unhealthy"
	default:
		return "Uninitialized"
	}
}

// Port holds the live, mutable state for a single MUX port: its static
// config plus the fields the link manager and heartbeat engine update as
// events arrive.
type Port struct {
	mu sync.RWMutex

	Config config.MuxPortConfig

	PeerMac    [6]byte
	SrcMac     [6]byte
	Health     HealthLabel
	LastCause  switchcause.Cause
	Backoff    int
}

// NewPort builds a port in its initial, uninitialized state. SrcMac
// defaults to the well-known MAC when the config calls for it;
// otherwise (or when server_id is out of range) it starts as the
// configured blade MAC, which SetSrcMac can replace later.
func NewPort(cfg config.MuxPortConfig) *Port {
	p := &Port{Config: cfg, Health: HealthUninitialized}
	if cfg.Shared.UseWellKnownMac {
		mac, err := KnownMAC(cfg.ServerID)
		if err != nil {
			log.Logger.Warnf("%s: %v, falling back to configured blade mac", cfg.PortName, err)
			mac = cfg.BladeMac
		}
		p.SrcMac = mac
	} else {
		p.SrcMac = cfg.BladeMac
	}
	return p
}

// SetHealth updates the published health label under lock.
func (p *Port) SetHealth(h HealthLabel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Health = h
}

// GetHealth reads the published health label under lock.
func (p *Port) GetHealth() HealthLabel {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Health
}

// SetSrcMac updates the MAC the heartbeat engine addresses the server
// with, called when use_well_known_mac flips or the neighbor adapter
// resolves a new MAC.
func (p *Port) SetSrcMac(mac [6]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SrcMac = mac
}

// Registry maps server IPv4/IPv6 addresses to their owning port, used by
// the netlink neighbor adapter to route a resolved MAC to the right
// port (spec.md §2, "ServerIp -> Port map").
type Registry struct {
	mu      sync.RWMutex
	byIP    map[string]*Port
	byName  map[string]*Port
}

func NewRegistry() *Registry {
	return &Registry{
		byIP:   make(map[string]*Port),
		byName: make(map[string]*Port),
	}
}

func (r *Registry) Add(p *Port) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[p.Config.PortName] = p
	if p.Config.ServerIpv4 != "" {
		r.byIP[p.Config.ServerIpv4] = p
	}
	if p.Config.ServerIpv6 != "" {
		r.byIP[p.Config.ServerIpv6] = p
	}
}

func (r *Registry) ByName(name string) (*Port, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("port %q: %w", name, errdefs.ErrNotFound)
	}
	return p, nil
}

func (r *Registry) ByServerIP(ip string) (*Port, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byIP[ip]
	if !ok {
		return nil, fmt.Errorf("server ip %q: %w", ip, errdefs.ErrNotFound)
	}
	return p, nil
}

func (r *Registry) All() []*Port {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Port, 0, len(r.byName))
	for _, p := range r.byName {
		out = append(out, p)
	}
	return out
}
