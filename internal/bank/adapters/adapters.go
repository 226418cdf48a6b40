// Package adapters wires every bank adapter into a registry at startup.
package adapters

import (
	"github.com/lox/bank-statement-sync/internal/bank"
	"github.com/lox/bank-statement-sync/internal/bank/yapikredi"
)

// RegisterAll adds every supported bank adapter to r
func RegisterAll(r *bank.Registry) {
	r.Register(yapikredi.Code, yapikredi.Name, yapikredi.Factory(yapikredi.NewConfig()))
}

// NewRegistry returns a registry with every supported adapter registered
func NewRegistry() *bank.Registry {
	r := bank.NewRegistry()
	RegisterAll(r)
	return r
}
