package click

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"merch_shop/internal/fiscal"
	"merch_shop/internal/models"
	"merch_shop/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHeader(t *testing.T) {
	c := NewClient("http://gateway", "11108", "secret", "23472")
	now := time.Unix(1700000000, 0)

	digest := fmt.Sprintf("%x", sha1.Sum([]byte("1700000000secret")))
	assert.Equal(t, "11108:"+digest+":1700000000", c.AuthHeader(now))
}

func TestPrepareSignature(t *testing.T) {
	p := PrepareParams{
		ClickTransID:    "123456",
		ServiceID:       "23472",
		MerchantTransID: "mt-1",
		Amount:          "100000",
		Action:          "0",
		SignTime:        "2026-08-23 10:00:00",
	}
	want := fmt.Sprintf("%x", md5.Sum([]byte("12345623472secretmt-11000000"+"2026-08-23 10:00:00")))
	assert.Equal(t, want, PrepareSignature(p, "secret"))

	p.SignString = want
	assert.True(t, VerifyPrepare(p, "secret"))
	assert.False(t, VerifyPrepare(p, "other-secret"))
}

func TestCompleteSignatureIncludesPrepareID(t *testing.T) {
	p := CompleteParams{
		PrepareParams: PrepareParams{
			ClickTransID:    "123456",
			ServiceID:       "23472",
			MerchantTransID: "mt-1",
			Amount:          "100000",
			Action:          "1",
			SignTime:        "2026-08-23 10:05:00",
		},
		MerchantPrepareID: "42",
	}
	want := fmt.Sprintf("%x", md5.Sum([]byte("12345623472secretmt-1421000001"+"2026-08-23 10:05:00")))
	assert.Equal(t, want, CompleteSignature(p, "secret"))

	p.SignString = want
	assert.True(t, VerifyComplete(p, "secret"))

	p.MerchantPrepareID = "43"
	assert.False(t, VerifyComplete(p, "secret"))
}

func TestCreateInvoice(t *testing.T) {
	var got createInvoiceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/invoice/create", r.URL.Path)
		auth := r.Header.Get("Auth")
		require.True(t, strings.HasPrefix(auth, "11108:"), "auth header %q", auth)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{"error_code": 0, "invoice_id": 987})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "11108", "secret", "23472")
	result, err := c.CreateInvoice("mt-1", money.FromSum(100000), "+998901234567")
	require.NoError(t, err)

	assert.Equal(t, int64(100000), got.Amount, "invoice amount crosses the boundary in sums")
	assert.Equal(t, "mt-1", got.MerchantTransID)
	assert.Equal(t, "23472", got.ServiceID)
	assert.Equal(t, "https://my.click.uz/pay/invoice/987", result.PaymentURL)
}

func TestCreateInvoiceGatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "11108", "secret", "23472")
	_, err := c.CreateInvoice("mt-1", money.FromSum(1000), "+998901234567")
	assert.ErrorIs(t, err, models.ErrGateway)
}

func TestCreateInvoiceRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"error_code": -31, "error_note": "Invalid phone"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "11108", "secret", "23472")
	_, err := c.CreateInvoice("mt-1", money.FromSum(1000), "bad")
	assert.ErrorIs(t, err, models.ErrGateway)
}

func TestSubmitFiscalData(t *testing.T) {
	var got submitFiscalRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payment/ofd_data/submit_items", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]interface{}{"error_code": 0})
	}))
	defer srv.Close()

	item, err := fiscal.ComputeLineItem("Mug", 2, money.FromSum(50000))
	require.NoError(t, err)

	c := NewClient(srv.URL, "11108", "secret", "23472")
	_, err = c.SubmitFiscalData("click-trans-9", []fiscal.LineItem{item}, money.Amount(10000000))
	require.NoError(t, err)

	assert.Equal(t, "click-trans-9", got.PaymentID)
	assert.Equal(t, int64(10000000), got.ReceivedEcash, "fiscal amounts stay in tiyin")
	assert.Zero(t, got.ReceivedCash)
	assert.Zero(t, got.ReceivedCard)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(10000000), got.Items[0].Price)
}
