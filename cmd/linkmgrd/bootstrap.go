package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/sonic-net/linkmgrd-go/pkg/config"
)

// startupConfig is the JSON shape read from -config: a Go-idiomatic
// stand-in for the "mux_cable"/"device_metadata" config-DB tables
// spec.md §6 describes only as an external KV-store boundary. Real
// deployments populate ports via the KV subscriber instead; this file
// lets the daemon boot standalone (for local runs and the warm-restart
// scenario) without one.
type startupConfig struct {
	DeviceMetadata struct {
		TorMac  string `json:"tor_mac"`
		VlanMac string `json:"vlan_mac"`
	} `json:"device_metadata"`
	WarmRestart bool `json:"warm_restart"`
	Ports       []portSpec `json:"ports"`
}

type portSpec struct {
	Name       string `json:"name"`
	ServerID   uint32 `json:"server_id"`
	ServerIpv4 string `json:"server_ipv4"`
	ServerIpv6 string `json:"server_ipv6"`
	BladeMac   string `json:"blade_mac"`
	SoCIpv4    string `json:"soc_ipv4"`
	CableType  string `json:"cable_type"` // "active-standby" | "active-active"
	Mode       string `json:"mode"`       // "auto" | "manual" | "active" | "standby" | "detached"
}

func loadStartupConfig(path string) (*startupConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open startup config: %w", err)
	}
	defer f.Close()

	var sc startupConfig
	if err := json.NewDecoder(f).Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse startup config: %w", err)
	}
	return &sc, nil
}

func parseMAC(s string) ([6]byte, error) {
	var out [6]byte
	if s == "" {
		return out, nil
	}
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return out, fmt.Errorf("invalid MAC %q", s)
	}
	copy(out[:], hw)
	return out, nil
}

func parseCableType(s string) config.CableType {
	if s == "active-active" {
		return config.CableTypeActiveActive
	}
	return config.CableTypeActiveStandby
}

func parseMode(s string) config.Mode {
	switch s {
	case "manual":
		return config.ModeManual
	case "active":
		return config.ModeActive
	case "standby":
		return config.ModeStandby
	case "detached":
		return config.ModeDetached
	default:
		return config.ModeAuto
	}
}

// toPortConfigs converts the JSON spec into typed MuxPortConfigs,
// applying sharedCfg to every port (spec.md §3: PortConfig is built
// from the per-port cable-table row plus the shared mux_linkmgr tunables).
func (sc *startupConfig) toPortConfigs(sharedCfg config.MuxLinkmgrConfig) ([]config.MuxPortConfig, error) {
	out := make([]config.MuxPortConfig, 0, len(sc.Ports))
	for _, p := range sc.Ports {
		bladeMac, err := parseMAC(p.BladeMac)
		if err != nil {
			return nil, fmt.Errorf("port %s: %w", p.Name, err)
		}
		out = append(out, config.MuxPortConfig{
			PortName:   p.Name,
			ServerID:   p.ServerID,
			ServerIpv4: p.ServerIpv4,
			ServerIpv6: p.ServerIpv6,
			BladeMac:   bladeMac,
			SoCIpv4:    p.SoCIpv4,
			CableType:  parseCableType(p.CableType),
			Mode:       parseMode(p.Mode),
			Shared:     sharedCfg,
		})
	}
	return out, nil
}
