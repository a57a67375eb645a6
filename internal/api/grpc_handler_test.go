package api

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NazarZnet/E-commerce/internal/domain"
	"github.com/NazarZnet/E-commerce/internal/filter"
	"github.com/NazarZnet/E-commerce/internal/service"
)

func setupTestGRPCClient(t *testing.T, sf Storefront) *FilterServiceClient {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	server := grpc.NewServer()
	RegisterFilterServiceServer(server, NewGRPCHandler(sf))
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewFilterServiceClient(conn)
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGRPCHandler_GetFilters(t *testing.T) {
	mockSF := new(MockStorefront)
	client := setupTestGRPCClient(t, mockSF)
	mockSF.On("Filters").Return(scooterState()).Once()

	res, err := client.GetFilters(context.Background())
	require.NoError(t, err)

	m := res.AsMap()
	assert.Equal(t, "Scooters", m["category"])
	assert.Equal(t, 100.0, m["minPrice"])
	assert.Nil(t, m["maxPrice"])
	chars := m["characteristics"].(map[string]interface{})
	assert.Equal(t, "blue,red", chars["Color"])
	assert.Equal(t, true, chars["Foldable"])
	assert.Equal(t, map[string]interface{}{"min": 0.0, "max": 80.0}, chars["Range"])
	mockSF.AssertExpectations(t)
}

func TestGRPCHandler_SetFilters(t *testing.T) {
	mockSF := new(MockStorefront)
	client := setupTestGRPCClient(t, mockSF)

	mockSF.On("UpdateFilters", mock.Anything, mock.MatchedBy(func(p filter.Patch) bool {
		return p.Category.Set && *p.Category.Value == "Scooters" &&
			p.Characteristics.Set && assert.ObjectsAreEqual(filter.Between(10, 40), (*p.Characteristics.Value)["Range"])
	})).Return(scooterState(), nil).Once()

	res, err := client.SetFilters(context.Background(), mustStruct(t, map[string]interface{}{
		"category":        "Scooters",
		"characteristics": map[string]interface{}{"Range": map[string]interface{}{"min": 10, "max": 40}},
	}))
	require.NoError(t, err)
	assert.Equal(t, "Scooters", res.AsMap()["category"])
	mockSF.AssertExpectations(t)
}

func TestGRPCHandler_SetFilters_InvalidArgument(t *testing.T) {
	mockSF := new(MockStorefront)
	client := setupTestGRPCClient(t, mockSF)

	_, err := client.SetFilters(context.Background(), mustStruct(t, map[string]interface{}{"minPrice": 20, "maxPrice": 10}))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.SetFilters(context.Background(), mustStruct(t, map[string]interface{}{
		"characteristics": map[string]interface{}{"Range": 5},
	}))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	mockSF.AssertNotCalled(t, "UpdateFilters", mock.Anything, mock.Anything)
}

func TestGRPCHandler_SetFilters_Internal(t *testing.T) {
	mockSF := new(MockStorefront)
	client := setupTestGRPCClient(t, mockSF)
	mockSF.On("UpdateFilters", mock.Anything, mock.Anything).Return(filter.FilterState{}, errors.New("db down")).Once()

	_, err := client.SetFilters(context.Background(), mustStruct(t, map[string]interface{}{"category": "Scooters"}))
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
	mockSF.AssertExpectations(t)
}

func TestGRPCHandler_ResetFilters(t *testing.T) {
	mockSF := new(MockStorefront)
	client := setupTestGRPCClient(t, mockSF)
	mockSF.On("ResetFilters").Return(filter.InitialState()).Once()

	res, err := client.ResetFilters(context.Background())
	require.NoError(t, err)
	m := res.AsMap()
	assert.Nil(t, m["category"])
	assert.Equal(t, map[string]interface{}{}, m["characteristics"])
	mockSF.AssertExpectations(t)
}

func TestGRPCHandler_ListProducts(t *testing.T) {
	mockSF := new(MockStorefront)
	client := setupTestGRPCClient(t, mockSF)

	query := service.ProductQuery{Search: "bike", Featured: ptr(false), Ordering: "price", Page: 1, PageSize: 20}
	page := &service.ProductPage{Count: 1, TotalPages: 1, CurrentPage: 1, Results: []domain.Product{{ID: 2, Slug: "trail-bike"}}}
	mockSF.On("ListProducts", mock.Anything, query).Return(page, nil).Once()

	res, err := client.ListProducts(context.Background(), mustStruct(t, map[string]interface{}{
		"search": "bike", "featured": false, "ordering": "price", "page": 1, "page_size": 20,
	}))
	require.NoError(t, err)

	m := res.AsMap()
	assert.Equal(t, 1.0, m["count"])
	results := m["results"].([]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, "trail-bike", results[0].(map[string]interface{})["slug"])
	mockSF.AssertExpectations(t)
}

func TestGRPCHandler_ListProducts_Errors(t *testing.T) {
	mockSF := new(MockStorefront)
	client := setupTestGRPCClient(t, mockSF)
	mockSF.On("ListProducts", mock.Anything, service.ProductQuery{Page: 7}).
		Return(nil, service.ErrInvalidPage).Once()

	_, err := client.ListProducts(context.Background(), mustStruct(t, map[string]interface{}{"page": 7}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.ListProducts(context.Background(), mustStruct(t, map[string]interface{}{"page_size": -1}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	mockSF.AssertExpectations(t)
}
