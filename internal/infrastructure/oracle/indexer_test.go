package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptowallet/internal/config"
	"cryptowallet/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func pendingDeposit(reference string) *model.Transaction {
	return &model.Transaction{
		ID:     1,
		Kind:   model.TransactionKindDeposit,
		Token:  model.TokenUSDT,
		Amount: decimal.NewFromInt(60),
		Status: model.TransactionStatusPending,
		Hash:   "0xinternal",
		Meta: datatypes.NewJSONType(model.TransactionMeta{
			Deposit: &model.DepositMeta{Reference: reference},
		}),
	}
}

func TestIndexerConfirmer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "usdt", r.URL.Query().Get("token"))
		assert.Equal(t, "60", r.URL.Query().Get("amount"))

		switch r.URL.Path {
		case "/v1/deposits/0xconfirmed":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"confirmed": true, "confirmations": 12, "tx_hash": "0xconfirmed"}`))
		case "/v1/deposits/0xpending":
			_, _ = w.Write([]byte(`{"confirmed": false, "confirmations": 1}`))
		case "/v1/deposits/0xinternal":
			_, _ = w.Write([]byte(`{"confirmed": true}`))
		case "/v1/deposits/0xbroken":
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewIndexerConfirmer(srv.URL+"/", time.Second)
	ctx := context.Background()

	ok, err := c.IsConfirmed(ctx, pendingDeposit("0xconfirmed"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsConfirmed(ctx, pendingDeposit("0xpending"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.IsConfirmed(ctx, pendingDeposit("0xunknown"))
	require.NoError(t, err)
	assert.False(t, ok, "404 means not yet seen on chain")

	// 没有外部凭证时按内部 hash 查询
	ok, err = c.IsConfirmed(ctx, pendingDeposit(""))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.IsConfirmed(ctx, pendingDeposit("0xbroken"))
	assert.ErrorContains(t, err, "500")
}

func TestNewConfirmer(t *testing.T) {
	c, err := NewConfirmer(&config.OracleConfig{Mode: "random", ConfirmProbability: 1})
	require.NoError(t, err)
	ok, err := c.IsConfirmed(context.Background(), pendingDeposit(""))
	require.NoError(t, err)
	assert.True(t, ok)

	never, err := NewConfirmer(&config.OracleConfig{Mode: "random", ConfirmProbability: 0})
	require.NoError(t, err)
	ok, _ = never.IsConfirmed(context.Background(), pendingDeposit(""))
	assert.False(t, ok)

	_, err = NewConfirmer(&config.OracleConfig{Mode: "indexer"})
	assert.Error(t, err)

	c, err = NewConfirmer(&config.OracleConfig{Mode: "indexer", IndexerURL: "http://indexer"})
	require.NoError(t, err)
	assert.IsType(t, &IndexerConfirmer{}, c)

	_, err = NewConfirmer(&config.OracleConfig{Mode: "psychic"})
	assert.Error(t, err)
}
