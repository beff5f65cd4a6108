package payment

import (
	"fmt"

	"membership-payments/internal/domain/ports/adapter"
)

// Registry selects a gateway implementation by the payment's gateway field.
type Registry struct {
	byName      map[string]adapter.PaymentGateway
	defaultName string
}

func NewRegistry(defaultName string, gateways ...adapter.PaymentGateway) *Registry {
	m := make(map[string]adapter.PaymentGateway, len(gateways))
	for _, g := range gateways {
		m[g.Name()] = g
	}
	return &Registry{byName: m, defaultName: defaultName}
}

// Get resolves a gateway by name; an empty name yields the default.
func (r *Registry) Get(name string) (adapter.PaymentGateway, error) {
	if name == "" {
		name = r.defaultName
	}
	g, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown payment gateway %q", name)
	}
	return g, nil
}

func (r *Registry) Default() adapter.PaymentGateway {
	g, _ := r.Get("")
	return g
}
