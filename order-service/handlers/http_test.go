package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/orderhub/order-system/order-service/application"
	"github.com/orderhub/order-system/order-service/domain"
	"github.com/orderhub/order-system/order-service/mocks"
	"github.com/orderhub/order-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, repo *mocks.MockOrderRepository, publisher *mocks.MockPublisher) chi.Router {
	t.Helper()

	handlers := NewOrderHandlers(
		application.NewCreateOrder(repo, publisher),
		application.NewGetOrderStatus(repo),
		application.NewListOrdersByStatus(repo),
	)

	router := chi.NewRouter()
	handlers.RegisterRoutes(router)
	return router
}

func TestCreateOrderEndpoint(t *testing.T) {
	mockRepo := mocks.NewMockOrderRepository(t)
	mockPublisher := mocks.NewMockPublisher(t)

	mockRepo.EXPECT().Save(mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
	mockPublisher.EXPECT().Publish(mock.Anything, mock.Anything).Return(nil).Once()

	router := newTestRouter(t, mockRepo, mockPublisher)

	body, err := json.Marshal(application.CreateOrderCommand{
		CustomerName: "Alice",
		ProductName:  "Widget",
		Quantity:     3,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var response application.CreateOrderResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.NotEmpty(t, response.OrderID)
	assert.Equal(t, "Alice", response.CustomerName)
	assert.Equal(t, domain.OrderStatusPending, response.Status)
}

func TestCreateOrderEndpoint_InvalidBody(t *testing.T) {
	mockRepo := mocks.NewMockOrderRepository(t)
	mockPublisher := mocks.NewMockPublisher(t)

	router := newTestRouter(t, mockRepo, mockPublisher)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "Invalid request body", response.Message)
	assert.NotEmpty(t, response.Details)
}

func TestGetOrderStatusEndpoint(t *testing.T) {
	orderID := models.GenerateUUID()

	mockRepo := mocks.NewMockOrderRepository(t)
	mockPublisher := mocks.NewMockPublisher(t)

	mockRepo.EXPECT().FindStatusByID(mock.Anything, orderID).Return(&domain.OrderProjection{
		OrderID:      orderID,
		CustomerName: "Alice",
		ProductName:  "Widget",
		Status:       domain.OrderStatusProcessing,
	}, nil).Once()

	router := newTestRouter(t, mockRepo, mockPublisher)

	req := httptest.NewRequest(http.MethodGet, "/orders/"+orderID.String()+"/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var projection domain.OrderProjection
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&projection))
	assert.Equal(t, orderID, projection.OrderID)
	assert.Equal(t, domain.OrderStatusProcessing, projection.Status)
}

func TestGetOrderStatusEndpoint_NotFound(t *testing.T) {
	orderID := models.GenerateUUID()

	mockRepo := mocks.NewMockOrderRepository(t)
	mockPublisher := mocks.NewMockPublisher(t)

	mockRepo.EXPECT().FindStatusByID(mock.Anything, orderID).Return(nil, nil).Once()

	router := newTestRouter(t, mockRepo, mockPublisher)

	req := httptest.NewRequest(http.MethodGet, "/orders/"+orderID.String()+"/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, domain.ErrOrderNotFound.Error(), response.Message)
}

func TestListOrdersByStatusEndpoint(t *testing.T) {
	mockRepo := mocks.NewMockOrderRepository(t)
	mockPublisher := mocks.NewMockPublisher(t)

	mockRepo.EXPECT().FindByStatus(mock.Anything, domain.OrderStatusCompleted).
		Return([]*domain.OrderProjection{
			{OrderID: models.GenerateUUID(), CustomerName: "Alice", ProductName: "Widget", Status: domain.OrderStatusCompleted},
		}, nil).Once()

	router := newTestRouter(t, mockRepo, mockPublisher)

	req := httptest.NewRequest(http.MethodGet, "/orders/status/COMPLETED", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var projections []*domain.OrderProjection
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&projections))
	assert.Len(t, projections, 1)
	assert.Equal(t, "Alice", projections[0].CustomerName)
}

func TestListOrdersByStatusEndpoint_EmptyResult(t *testing.T) {
	mockRepo := mocks.NewMockOrderRepository(t)
	mockPublisher := mocks.NewMockPublisher(t)

	mockRepo.EXPECT().FindByStatus(mock.Anything, domain.OrderStatusFailed).Return(nil, nil).Once()

	router := newTestRouter(t, mockRepo, mockPublisher)

	req := httptest.NewRequest(http.MethodGet, "/orders/status/FAILED", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	// An empty result renders as a JSON array, never null
	assert.JSONEq(t, "[]", rec.Body.String())
}
