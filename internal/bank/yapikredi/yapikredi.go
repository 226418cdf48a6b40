package yapikredi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	"github.com/lox/bank-statement-sync/internal/bank"
	"github.com/lox/bank-statement-sync/internal/types"
	"github.com/shopspring/decimal"
)

const (
	Code = "yapikredi"
	Name = "Yapı Kredi"

	DefaultBaseURL = "https://api.yapikredi.com.tr"
	defaultAccount = "default"
)

var errUnauthorized = errors.New("access token rejected")

// Config holds the endpoint settings for the Yapı Kredi API
type Config struct {
	BaseURL string
	Timeout time.Duration
	Scope   string
}

func NewConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 30 * time.Second,
		Scope:   "accounts transactions",
	}
}

func (c Config) WithBaseURL(baseURL string) Config {
	c.BaseURL = baseURL
	return c
}
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.Timeout = timeout
	return c
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// Adapter talks to the Yapı Kredi open banking API using the OAuth2 client
// credentials flow
type Adapter struct {
	config      Config
	creds       bank.Credentials
	httpClient  *http.Client
	logger      *log.Logger
	accessToken string
}

// New creates an adapter against the production API
func New(creds bank.Credentials, logger *log.Logger) *Adapter {
	return NewWithConfig(NewConfig(), creds, logger)
}

func NewWithConfig(config Config, creds bank.Credentials, logger *log.Logger) *Adapter {
	return &Adapter{
		config: config,
		creds:  creds,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.With("bank", Code),
	}
}

// Factory returns a bank.Factory building adapters with the given config
func Factory(config Config) bank.Factory {
	return func(creds bank.Credentials, logger *log.Logger) bank.Adapter {
		return NewWithConfig(config, creds, logger)
	}
}

func (a *Adapter) Code() string {
	return Code
}

func (a *Adapter) Name() string {
	return Name
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate exchanges the client credentials for an access token
func (a *Adapter) Authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", a.creds.ClientID)
	form.Set("client_secret", a.creds.ClientSecret)
	form.Set("scope", a.config.Scope)

	tokenURL, err := a.endpoint("auth", "oauth", "v2", "token")
	if err != nil {
		return &bank.SyncError{Op: "authentication failed", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return &bank.SyncError{Op: "authentication failed", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, status, err := a.do(req)
	if err != nil {
		a.logger.Error("Authentication failed", "error", err)
		return &bank.SyncError{Op: "authentication failed", Err: err}
	}
	if status != http.StatusOK {
		a.logger.Error("Authentication failed", "status", status)
		return &bank.SyncError{Op: "authentication failed", Err: fmt.Errorf("token endpoint returned status %d: %s", status, body)}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return &bank.SyncError{Op: "authentication failed", Err: fmt.Errorf("failed to decode token response: %w", err)}
	}
	if token.AccessToken == "" {
		return &bank.SyncError{Op: "authentication failed", Err: errors.New("no access_token in response")}
	}

	a.accessToken = token.AccessToken
	a.logger.Debug("Authenticated", "expires_in", token.ExpiresIn)
	return nil
}

// FetchTransactions lists the account's transactions between from and to.
// A rejected token triggers one re-authentication and a single retry.
func (a *Adapter) FetchTransactions(ctx context.Context, from, to time.Time) ([]types.Transaction, error) {
	var body []byte
	err := retry.Do(
		func() error {
			if a.accessToken == "" {
				if err := a.Authenticate(ctx); err != nil {
					return retry.Unrecoverable(err)
				}
			}

			b, err := a.listTransactions(ctx, from, to)
			if err != nil {
				if errors.Is(err, errUnauthorized) {
					a.accessToken = ""
				}
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errUnauthorized)
		}),
		retry.OnRetry(func(n uint, err error) {
			a.logger.Info("Token expired, re-authenticating", "attempt", n+1)
		}),
	)
	if err != nil {
		var syncErr *bank.SyncError
		if errors.As(err, &syncErr) {
			return nil, syncErr
		}
		a.logger.Error("Failed to fetch transactions", "error", err)
		return nil, &bank.SyncError{Op: "failed to fetch transactions", Err: err}
	}

	return a.parseTransactions(body)
}

// TestConnection reports whether the credentials are accepted
func (a *Adapter) TestConnection(ctx context.Context) bool {
	if err := a.Authenticate(ctx); err != nil {
		a.logger.Debug("Connection test failed", "error", err)
		return false
	}
	return true
}

func (a *Adapter) listTransactions(ctx context.Context, from, to time.Time) ([]byte, error) {
	account := a.creds.AccountID
	if account == "" {
		account = defaultAccount
	}

	u, err := a.endpoint("api", "accounts", account, "transactions")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("dateFrom", from.Format(types.DateLayout))
	q.Set("dateTo", to.Format(types.DateLayout))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.accessToken)
	req.Header.Set("Content-Type", "application/json")

	body, status, err := a.do(req)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return body, nil
	case http.StatusUnauthorized:
		return nil, errUnauthorized
	default:
		return nil, fmt.Errorf("transactions endpoint returned status %d: %s", status, body)
	}
}

func (a *Adapter) do(req *http.Request) ([]byte, int, error) {
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (a *Adapter) endpoint(elem ...string) (*url.URL, error) {
	base, err := url.Parse(a.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return base.JoinPath(elem...), nil
}

type transactionsResponse struct {
	Transactions []json.RawMessage `json:"transactions"`
	Data         []json.RawMessage `json:"data"`
}

func (a *Adapter) parseTransactions(body []byte) ([]types.Transaction, error) {
	var resp transactionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &bank.SyncError{Op: "failed to fetch transactions", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	items := resp.Transactions
	if items == nil {
		items = resp.Data
	}

	transactions := make([]types.Transaction, 0, len(items))
	for i, raw := range items {
		tx, err := parseItem(raw)
		if err != nil {
			a.logger.Warn("Skipping unparseable transaction", "index", i, "error", err)
			continue
		}
		transactions = append(transactions, tx)
	}

	a.logger.Debug("Fetched transactions", "count", len(transactions), "skipped", len(items)-len(transactions))
	return transactions, nil
}

func parseItem(raw json.RawMessage) (types.Transaction, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var item map[string]any
	if err := dec.Decode(&item); err != nil {
		return types.Transaction{}, fmt.Errorf("invalid item: %w", err)
	}

	amount, err := parseDecimal(item["amount"])
	if err != nil {
		return types.Transaction{}, fmt.Errorf("invalid amount: %w", err)
	}

	dateStr := firstString(item, "date", "transactionDate")
	if len(dateStr) < len(types.DateLayout) {
		return types.Transaction{}, fmt.Errorf("missing date")
	}
	date, err := time.Parse(types.DateLayout, dateStr[:len(types.DateLayout)])
	if err != nil {
		return types.Transaction{}, fmt.Errorf("invalid date: %w", err)
	}

	id := firstString(item, "id", "transactionId")
	if id == "" {
		return types.Transaction{}, fmt.Errorf("missing transaction id")
	}

	direction := types.DirectionIncome
	if amount.IsNegative() {
		direction = types.DirectionExpense
	}

	return types.Transaction{
		Date:        date,
		Description: strings.TrimSpace(firstString(item, "description", "merchantName")),
		Amount:      amount.Abs(),
		Direction:   direction,
		ExternalID:  id,
		Raw:         item,
	}, nil
}

func parseDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(n))
	default:
		return decimal.Zero, fmt.Errorf("unexpected type %T", v)
	}
}

// firstString returns the first of keys present as a non-empty string or number
func firstString(item map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := item[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

var _ bank.Adapter = (*Adapter)(nil)
