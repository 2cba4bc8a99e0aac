package models

import (
	"fmt"
	"strings"
)

// View selects which dashboard tab is active
type View string

const (
	ViewDashboard View = "dashboard"
	ViewDevices   View = "devices"
	ViewWifi      View = "wifi"
	ViewDNS       View = "dns"
)

// AllViews returns the views in tab order
func AllViews() []View {
	return []View{ViewDashboard, ViewDevices, ViewWifi, ViewDNS}
}

// ParseView converts a (case-insensitive) name to a View
func ParseView(s string) (View, error) {
	v := View(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllViews() {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown view %q (expected dashboard, devices, wifi or dns)", s)
}

// Title returns the tab label
func (v View) Title() string {
	switch v {
	case ViewDashboard:
		return "Dashboard"
	case ViewDevices:
		return "Devices"
	case ViewWifi:
		return "WiFi"
	case ViewDNS:
		return "DNS"
	default:
		return string(v)
	}
}
