package inventory_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/pcexpress-session/api"
	apperrors "github.com/jrsteele09/pcexpress-session/internal/errors"
	"github.com/jrsteele09/pcexpress-session/internal/mockapi"
	"github.com/jrsteele09/pcexpress-session/inventory"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type bearerTransport struct {
	token string
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(r)
}

func authedService(t *testing.T) (*inventory.Service, *mockapi.Server) {
	t.Helper()
	mock := mockapi.New()
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)

	conf := &oauth2.Config{Endpoint: oauth2.Endpoint{
		TokenURL:  srv.URL + mockapi.RouteToken,
		AuthStyle: oauth2.AuthStyleInParams,
	}}
	tok, err := conf.PasswordCredentialsToken(context.Background(), mockapi.SeedEmail, mockapi.SeedPassword)
	require.NoError(t, err)

	client := api.NewClient(srv.URL, &http.Client{Transport: bearerTransport{token: tok.AccessToken}})
	return inventory.NewService(client), mock
}

func TestService_Lists(t *testing.T) {
	svc, _ := authedService(t)
	ctx := context.Background()

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, products)

	suppliers, err := svc.ListSuppliers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, suppliers)

	orders, err := svc.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, orders)
	require.Positive(t, orders[0].Total())
}

func TestService_Dashboard(t *testing.T) {
	svc, mock := authedService(t)
	mock.SetProducts([]inventory.Product{
		{ID: "a", Category: "CPU", Price: 10, Quantity: 1, ReorderLevel: 2},
		{ID: "b", Category: "GPU", Price: 5, Quantity: 4, ReorderLevel: 1},
	})

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, d.TotalProducts)
	require.InDelta(t, 30.0, d.StockValue, 0.0001)
	require.Equal(t, 1, d.LowStockCount())
}

func TestService_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(mockapi.New())
	t.Cleanup(srv.Close)

	svc := inventory.NewService(api.NewClient(srv.URL, nil))
	_, err := svc.ListProducts(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
