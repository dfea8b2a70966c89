package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vat-service/internal/models"
	"vat-service/internal/services"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, srv.Client(), quietLogger()), srv
}

func TestRatesFromService(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vat/rates", r.URL.Path)
		assert.Equal(t, "Ireland", r.URL.Query().Get("country"))
		assert.Equal(t, "true", r.URL.Query().Get("active_only"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1, "country": "Ireland", "rate_name": "Standard", "rate_percentage": "23", "is_active": true, "effective_from": "2012-01-01T00:00:00Z"},
			{"id": 2, "country": "Ireland", "rate_name": "Reduced", "rate_percentage": "13.5", "is_active": true, "effective_from": "2012-01-01T00:00:00Z"}
		]`))
	}))
	defer srv.Close()

	rates, err := c.Rates(context.Background(), "Ireland", true)
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "Standard", rates[0].RateName)
	assert.True(t, rates[0].RatePercentage.Equal(dec("23")))
}

func TestRatesFallbackForIreland(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rates, err := c.Rates(context.Background(), "Ireland", true)
	require.NoError(t, err)
	require.Len(t, rates, 6)

	byName := map[string]decimal.Decimal{}
	for _, r := range rates {
		byName[r.RateName] = r.RatePercentage
		assert.Equal(t, "Ireland", r.Country)
		assert.True(t, r.IsActive)
	}
	assert.True(t, byName["Standard"].Equal(dec("23")))
	assert.True(t, byName["Reduced"].Equal(dec("13.5")))
	assert.True(t, byName["Second Reduced"].Equal(dec("9")))
	assert.True(t, byName["Zero"].Equal(dec("0")))
	assert.True(t, byName["Exempt"].Equal(dec("0")))
	assert.True(t, byName["Home Office"].Equal(dec("0")))
}

func TestRatesUnreachableServer(t *testing.T) {
	// A server that is already closed stands in for an unreachable service
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(srv.URL, &http.Client{Timeout: time.Second}, quietLogger())

	rates, err := c.Rates(context.Background(), "Ireland", true)
	require.NoError(t, err)
	assert.Len(t, rates, 6)
}

func TestRatesNoFallbackForOtherCountries(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := c.Rates(context.Background(), "Germany", true)
	assert.Error(t, err)
}

func TestRatesMalformedPayload(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"country": "Ireland"}]`)) // missing required fields
	}))
	defer srv.Close()

	// Malformed payload counts as a catalog failure, fallback kicks in
	rates, err := c.Rates(context.Background(), "Ireland", true)
	require.NoError(t, err)
	assert.Len(t, rates, 6)
}

func TestDefaultRate(t *testing.T) {
	t.Run("prefers a rate named standard", func(t *testing.T) {
		rates := []models.VATRate{
			{ID: 2, RateName: "Reduced"},
			{ID: 1, RateName: "Standard"},
		}
		got := DefaultRate(rates)
		require.NotNil(t, got)
		assert.Equal(t, 1, got.ID)
	})

	t.Run("match is case-insensitive and substring", func(t *testing.T) {
		rates := []models.VATRate{
			{ID: 5, RateName: "Zero"},
			{ID: 7, RateName: "STANDARD RATE"},
		}
		got := DefaultRate(rates)
		require.NotNil(t, got)
		assert.Equal(t, 7, got.ID)
	})

	t.Run("falls back to the first rate", func(t *testing.T) {
		rates := []models.VATRate{
			{ID: 4, RateName: "Zero"},
			{ID: 5, RateName: "Exempt"},
		}
		got := DefaultRate(rates)
		require.NotNil(t, got)
		assert.Equal(t, 4, got.ID)
	})

	t.Run("empty list", func(t *testing.T) {
		assert.Nil(t, DefaultRate(nil))
	})
}

func TestCalculateRemote(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/vat/calculate", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("net_amount"))
		assert.Equal(t, "23", r.URL.Query().Get("vat_rate_percentage"))
		assert.Equal(t, "100", r.URL.Query().Get("business_usage_percentage"))
		_, _ = w.Write([]byte(`{
			"net_amount": "100", "vat_rate_percentage": "23",
			"vat_amount": "23", "gross_amount": "123",
			"business_usage_percentage": "100", "deductible_amount": "23"
		}`))
	}))
	defer srv.Close()

	calc, err := c.Calculate(context.Background(), models.CalculateVATRequest{
		NetAmount:               dec("100"),
		VATRatePercentage:       ptr(dec("23")),
		BusinessUsagePercentage: dec("100"),
	})
	require.NoError(t, err)
	assert.True(t, calc.VATAmount.Equal(dec("23")))
	assert.True(t, calc.GrossAmount.Equal(dec("123")))
}

func TestCalculateSendsRateID(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("vat_rate_id"))
		assert.Empty(t, r.URL.Query().Get("vat_rate_percentage"))
		_, _ = w.Write([]byte(`{
			"net_amount": "200", "vat_rate_percentage": "13.5",
			"vat_amount": "27", "gross_amount": "227"
		}`))
	}))
	defer srv.Close()

	id := 2
	calc, err := c.Calculate(context.Background(), models.CalculateVATRequest{
		NetAmount:               dec("200"),
		VATRateID:               &id,
		BusinessUsagePercentage: dec("100"),
	})
	require.NoError(t, err)
	assert.True(t, calc.VATAmount.Equal(dec("27")))
	// Usage and deductible default when the payload omits them
	assert.True(t, calc.BusinessUsagePercentage.Equal(dec("100")))
	assert.True(t, calc.DeductibleAmount.Equal(dec("27")))
}

func TestCalculateNoLocalFallback(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	// Forward calculation must not invent a breakdown when the service fails
	calc, err := c.Calculate(context.Background(), models.CalculateVATRequest{
		NetAmount:               dec("100"),
		VATRatePercentage:       ptr(dec("23")),
		BusinessUsagePercentage: dec("100"),
	})
	assert.Error(t, err)
	assert.Nil(t, calc)
}

func TestCalculateMalformedPayload(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"net_amount": "100"}`)) // missing vat fields
	}))
	defer srv.Close()

	calc, err := c.Calculate(context.Background(), models.CalculateVATRequest{
		NetAmount:               dec("100"),
		VATRatePercentage:       ptr(dec("23")),
		BusinessUsagePercentage: dec("100"),
	})
	assert.Error(t, err)
	assert.Nil(t, calc)
}

func TestCalculateValidation(t *testing.T) {
	c := NewClient("http://unused", nil, quietLogger())

	_, err := c.Calculate(context.Background(), models.CalculateVATRequest{
		NetAmount:               dec("-1"),
		VATRatePercentage:       ptr(dec("23")),
		BusinessUsagePercentage: dec("100"),
	})
	assert.ErrorIs(t, err, services.ErrNegativeAmount)

	_, err = c.Calculate(context.Background(), models.CalculateVATRequest{
		NetAmount:               dec("100"),
		BusinessUsagePercentage: dec("100"),
	})
	assert.ErrorIs(t, err, services.ErrRateRequired)

	_, err = c.Calculate(context.Background(), models.CalculateVATRequest{
		NetAmount:               dec("100"),
		VATRatePercentage:       ptr(dec("-23")),
		BusinessUsagePercentage: dec("100"),
	})
	assert.ErrorIs(t, err, services.ErrNegativeRate)

	_, err = c.Calculate(context.Background(), models.CalculateVATRequest{
		NetAmount:               dec("100"),
		VATRatePercentage:       ptr(dec("23")),
		BusinessUsagePercentage: dec("150"),
	})
	assert.ErrorIs(t, err, services.ErrInvalidBusinessUsage)
}

func TestCalculateFromGrossRemote(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vat/calculate-from-gross", r.URL.Path)
		assert.Equal(t, "123", r.URL.Query().Get("gross_amount"))
		_, _ = w.Write([]byte(`{
			"net_amount": "100", "vat_rate_percentage": "23",
			"vat_amount": "23", "gross_amount": "123",
			"business_usage_percentage": "100", "deductible_amount": "23"
		}`))
	}))
	defer srv.Close()

	calc, err := c.CalculateFromGross(context.Background(), models.CalculateFromGrossRequest{
		GrossAmount:             dec("123"),
		VATRatePercentage:       ptr(dec("23")),
		BusinessUsagePercentage: dec("100"),
	})
	require.NoError(t, err)
	assert.True(t, calc.NetAmount.Equal(dec("100")))
}

func TestCalculateFromGrossLocalFallback(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	calc, err := c.CalculateFromGross(context.Background(), models.CalculateFromGrossRequest{
		GrossAmount:             dec("123"),
		VATRatePercentage:       ptr(dec("23")),
		BusinessUsagePercentage: dec("100"),
	})
	require.NoError(t, err)
	assert.True(t, calc.NetAmount.Equal(dec("100")), "net: got %s", calc.NetAmount)
	assert.True(t, calc.VATAmount.Equal(dec("23")), "vat: got %s", calc.VATAmount)
	assert.True(t, calc.GrossAmount.Equal(dec("123")))
}

func TestCalculateFromGrossLocalFallbackByRateID(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	// Rate id 2 resolves against the built-in table (13.5%)
	id := 2
	calc, err := c.CalculateFromGross(context.Background(), models.CalculateFromGrossRequest{
		GrossAmount:             dec("227"),
		VATRateID:               &id,
		BusinessUsagePercentage: dec("100"),
	})
	require.NoError(t, err)
	assert.True(t, calc.NetAmount.Equal(dec("200")), "net: got %s", calc.NetAmount)
	assert.True(t, calc.VATAmount.Equal(dec("27")))
}

func TestCalculateFromGrossLocalFallbackUnknownRateID(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	id := 99
	_, err := c.CalculateFromGross(context.Background(), models.CalculateFromGrossRequest{
		GrossAmount:             dec("123"),
		VATRateID:               &id,
		BusinessUsagePercentage: dec("100"),
	})
	assert.Error(t, err)
}

func TestCalculateFromGrossZeroRate(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	calc, err := c.CalculateFromGross(context.Background(), models.CalculateFromGrossRequest{
		GrossAmount:             dec("150"),
		VATRatePercentage:       ptr(dec("0")),
		BusinessUsagePercentage: dec("100"),
	})
	require.NoError(t, err)
	assert.True(t, calc.NetAmount.Equal(dec("150")))
	assert.True(t, calc.VATAmount.Equal(dec("0")))
}

func TestClientIsStateless(t *testing.T) {
	calls := 0
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	req := models.CalculateFromGrossRequest{
		GrossAmount:             dec("123"),
		VATRatePercentage:       ptr(dec("23")),
		BusinessUsagePercentage: dec("100"),
	}
	first, err := c.CalculateFromGross(context.Background(), req)
	require.NoError(t, err)
	second, err := c.CalculateFromGross(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, first.NetAmount.Equal(second.NetAmount))
	assert.True(t, first.VATAmount.Equal(second.VATAmount))
	assert.Equal(t, 2, calls)
}
