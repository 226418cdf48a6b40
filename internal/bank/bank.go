package bank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/bank-statement-sync/internal/types"
	"golang.org/x/exp/slices"
)

// ErrUnknownAdapter is returned when no adapter is registered for a bank code
var ErrUnknownAdapter = errors.New("no adapter registered for bank")

// Adapter is a client for one bank's transaction API
type Adapter interface {
	// Code returns the bank code the adapter is registered under
	Code() string

	// Name returns the display name of the bank
	Name() string

	// Authenticate exchanges the credentials for an access token
	Authenticate(ctx context.Context) error

	// FetchTransactions returns the transactions booked between from and to,
	// authenticating first if needed
	FetchTransactions(ctx context.Context, from, to time.Time) ([]types.Transaction, error)

	// TestConnection reports whether the credentials are accepted
	TestConnection(ctx context.Context) bool
}

// Credentials are the decrypted secrets of a bank connection
type Credentials struct {
	ClientID     string
	ClientSecret string
	AccountID    string
}

// Factory builds an adapter for one set of credentials
type Factory func(creds Credentials, logger *log.Logger) Adapter

// SyncError is returned by adapters when the bank cannot be reached or
// rejects a request
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Info describes a registered bank
type Info struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type registration struct {
	name    string
	factory Factory
}

// Registry maintains the available bank adapters
type Registry struct {
	adapters map[string]registration
}

// NewRegistry creates a new, empty adapter registry
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]registration),
	}
}

// Register adds an adapter factory, replacing any previous one for the code
func (r *Registry) Register(code, name string, factory Factory) {
	r.adapters[code] = registration{name: name, factory: factory}
}

// New builds the adapter registered for code
func (r *Registry) New(code string, creds Credentials, logger *log.Logger) (Adapter, error) {
	reg, ok := r.adapters[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownAdapter, code, r.codes())
	}
	return reg.factory(creds, logger), nil
}

// List returns every registered bank ordered by code
func (r *Registry) List() []Info {
	codes := r.codes()
	infos := make([]Info, 0, len(codes))
	for _, code := range codes {
		infos = append(infos, Info{Code: code, Name: r.adapters[code].name})
	}
	return infos
}

func (r *Registry) codes() []string {
	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}
