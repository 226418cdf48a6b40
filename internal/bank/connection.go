package bank

import "time"

// Connection is a user's stored link to one bank account
type Connection struct {
	ID       int64  `json:"id"`
	BankCode string `json:"bank_code"`
	BankName string `json:"bank_name"`
	// ClientID and ClientSecret are held decrypted
	ClientID     string `json:"-"`
	ClientSecret string `json:"-"`
	AccountID    string `json:"account_id,omitempty"`
	IsActive     bool   `json:"is_active"`

	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
	LastSyncStatus  string     `json:"last_sync_status,omitempty"`
	LastSyncMessage string     `json:"last_sync_message,omitempty"`
}

// Credentials returns the secrets an adapter needs for this connection
func (c Connection) Credentials() Credentials {
	return Credentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		AccountID:    c.AccountID,
	}
}
