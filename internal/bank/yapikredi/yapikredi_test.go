package yapikredi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/bank-statement-sync/internal/bank"
	"github.com/lox/bank-statement-sync/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	tokens        atomic.Int32
	listCalls     atomic.Int32
	rejectFirst   int32
	tokenStatus   int
	listStatus    int
	listBody      string
	lastQuery     atomic.Value
	lastAuthority atomic.Value
	lastPath      atomic.Value
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "accounts transactions", r.PostForm.Get("scope"))

		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			return
		}
		n := f.tokens.Add(1)
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":3600}`, n)
	})
	mux.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		n := f.listCalls.Add(1)
		f.lastQuery.Store(r.URL.RawQuery)
		f.lastAuthority.Store(r.Header.Get("Authorization"))
		f.lastPath.Store(r.URL.Path)

		if n <= f.rejectFirst {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.listStatus != 0 {
			w.WriteHeader(f.listStatus)
			return
		}
		io.WriteString(w, f.listBody)
	})
	return mux
}

func newTestAdapter(t *testing.T, api *fakeAPI, accountID string) *Adapter {
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	config := NewConfig().WithBaseURL(srv.URL).WithTimeout(5 * time.Second)
	require.NoError(t, config.Validate())

	return NewWithConfig(config, bank.Credentials{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AccountID:    accountID,
	}, log.New(io.Discard))
}

var (
	jan1  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan31 = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
)

const sampleTransactions = `{
	"transactions": [
		{"id": "tx-1", "date": "2024-01-05T10:15:00", "amount": -1234.56, "description": "MIGROS"},
		{"transactionId": 42, "transactionDate": "2024-01-10", "amount": "25000.00", "merchantName": "MAAS"},
		{"id": "tx-3", "amount": -10},
		{"id": "tx-4", "date": "05/01/2024", "amount": -10},
		{"id": "tx-5", "date": "2024-01-12", "amount": {"value": 1}},
		{"date": "2024-01-13", "amount": -3}
	]
}`

func TestFetchTransactions(t *testing.T) {
	api := &fakeAPI{listBody: sampleTransactions}
	adapter := newTestAdapter(t, api, "TR123")

	txs, err := adapter.FetchTransactions(context.Background(), jan1, jan31)
	require.NoError(t, err)

	assert.Equal(t, int32(1), api.tokens.Load(), "authenticates lazily")
	assert.Equal(t, "/api/accounts/TR123/transactions", api.lastPath.Load())
	assert.Equal(t, "dateFrom=2024-01-01&dateTo=2024-01-31", api.lastQuery.Load())
	assert.Equal(t, "Bearer token-1", api.lastAuthority.Load())

	require.Len(t, txs, 2, "unparseable items are skipped")

	assert.Equal(t, "tx-1", txs[0].ExternalID)
	assert.Equal(t, "MIGROS", txs[0].Description)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(txs[0].Amount))
	assert.Equal(t, types.DirectionExpense, txs[0].Direction)
	assert.True(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC).Equal(txs[0].Date))
	assert.Equal(t, 0, txs[0].SourceRow)

	assert.Equal(t, "42", txs[1].ExternalID)
	assert.Equal(t, "MAAS", txs[1].Description)
	assert.True(t, decimal.NewFromInt(25000).Equal(txs[1].Amount))
	assert.Equal(t, types.DirectionIncome, txs[1].Direction)
	assert.NotNil(t, txs[1].Raw)
}

func TestFetchTransactionsDataKey(t *testing.T) {
	api := &fakeAPI{listBody: `{"data": [{"id": "a", "date": "2024-01-02", "amount": 5}]}`}
	adapter := newTestAdapter(t, api, "")

	txs, err := adapter.FetchTransactions(context.Background(), jan1, jan31)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "a", txs[0].ExternalID)
	assert.Equal(t, "/api/accounts/default/transactions", api.lastPath.Load())
}

func TestFetchTransactionsReauthenticatesOnce(t *testing.T) {
	api := &fakeAPI{listBody: `{"transactions": []}`, rejectFirst: 1}
	adapter := newTestAdapter(t, api, "")

	require.NoError(t, adapter.Authenticate(context.Background()))

	txs, err := adapter.FetchTransactions(context.Background(), jan1, jan31)
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.Equal(t, int32(2), api.tokens.Load())
	assert.Equal(t, int32(2), api.listCalls.Load())
	assert.Equal(t, "Bearer token-2", api.lastAuthority.Load())
}

func TestFetchTransactionsGivesUpAfterSecondRejection(t *testing.T) {
	api := &fakeAPI{rejectFirst: 5}
	adapter := newTestAdapter(t, api, "")

	_, err := adapter.FetchTransactions(context.Background(), jan1, jan31)
	require.Error(t, err)

	var syncErr *bank.SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, int32(2), api.listCalls.Load())
	assert.Equal(t, int32(2), api.tokens.Load())
}

func TestFetchTransactionsServerError(t *testing.T) {
	api := &fakeAPI{listStatus: http.StatusInternalServerError}
	adapter := newTestAdapter(t, api, "")

	_, err := adapter.FetchTransactions(context.Background(), jan1, jan31)

	var syncErr *bank.SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(1), api.listCalls.Load(), "only authorization failures are retried")
}

func TestAuthenticateFailures(t *testing.T) {
	t.Run("rejected credentials", func(t *testing.T) {
		adapter := newTestAdapter(t, &fakeAPI{tokenStatus: http.StatusBadRequest}, "")

		err := adapter.Authenticate(context.Background())
		var syncErr *bank.SyncError
		require.True(t, errors.As(err, &syncErr))
		assert.False(t, adapter.TestConnection(context.Background()))
	})

	t.Run("unreachable host", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		adapter := NewWithConfig(NewConfig().WithBaseURL(srv.URL), bank.Credentials{}, log.New(io.Discard))
		err := adapter.Authenticate(context.Background())
		var syncErr *bank.SyncError
		require.True(t, errors.As(err, &syncErr))

		_, err = adapter.FetchTransactions(context.Background(), jan1, jan31)
		require.True(t, errors.As(err, &syncErr))
	})

	t.Run("missing token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"token_type":"Bearer"}`)
		}))
		t.Cleanup(srv.Close)

		adapter := NewWithConfig(NewConfig().WithBaseURL(srv.URL), bank.Credentials{}, log.New(io.Discard))
		err := adapter.Authenticate(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access_token")
	})
}

func TestTestConnection(t *testing.T) {
	adapter := newTestAdapter(t, &fakeAPI{}, "")
	assert.True(t, adapter.TestConnection(context.Background()))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, NewConfig().Validate())
	assert.Error(t, NewConfig().WithBaseURL("").Validate())
	assert.Error(t, NewConfig().WithTimeout(0).Validate())
}
