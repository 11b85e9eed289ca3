package component

import (
	"context"
	"fmt"
	"strings"
)

// Info describes a component's identity as the coupling host sees it.
type Info struct {
	Name            string
	Version         string
	Type            string
	DownloadAddress string
	// CoupleTypes lists the exchange kinds the component can take part in.
	CoupleTypes []string
}

// Validate ensures the info block is well-formed.
func (i Info) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("component: name is required")
	}
	if strings.TrimSpace(i.Version) == "" {
		return fmt.Errorf("component: version is required for %s", i.Name)
	}
	if strings.TrimSpace(i.Type) == "" {
		return fmt.Errorf("component: type is required for %s", i.Name)
	}
	return nil
}

// SupportsCouple reports whether coupleType is one of the declared exchange kinds.
func (i Info) SupportsCouple(coupleType string) bool {
	for _, t := range i.CoupleTypes {
		if strings.EqualFold(t, strings.TrimSpace(coupleType)) {
			return true
		}
	}
	return false
}

// Component is implemented by every model the host can load.
type Component interface {
	Info() Info
}

// Coupler is implemented by components that exchange fields with other
// components at coupling points. Receive runs before a coupling step and
// Send after it.
type Coupler interface {
	Component
	Receive(ctx context.Context, coupleType string) error
	Send(ctx context.Context, coupleType string) error
}
