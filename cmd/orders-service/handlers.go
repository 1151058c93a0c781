package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	ord "github.com/Nest-Microservices-Edsanol/orders-microservice/internal/order"
)

// createOrderHandler godoc
// @Summary      Create an order from cart items
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body order.CreateOrderRequest true "cart items"
// @Success      201 {object} order.Order
// @Failure      400 {object} order.HTTPError
// @Router       /orders [post]
func createOrderHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ord.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ord.HTTPError{Error: "invalid json"})
			return
		}
		// Everything that can go wrong here (unknown product, catalog down,
		// persistence failure) surfaces as a bad request with the cause.
		o, err := svc.Create(c.Request.Context(), req.Items)
		if err != nil {
			c.JSON(http.StatusBadRequest, ord.HTTPError{Error: err.Error()})
			return
		}
		c.JSON(http.StatusCreated, o)
	}
}

// listOrdersHandler godoc
// @Summary      List orders with pagination and optional status filter
// @Tags         orders
// @Produce      json
// @Param        status query string false "exact status match" Enums(PENDING, PAID, CANCELLED, DELIVERED)
// @Param        page   query int    false "page, starting at 1"
// @Param        limit  query int    false "page size"
// @Success      200 {object} order.OrderPage
// @Failure      400 {object} order.HTTPError
// @Router       /orders [get]
func listOrdersHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f ord.ListFilter
		if raw := c.Query("status"); raw != "" {
			st, ok := ord.ParseStatus(raw)
			if !ok {
				c.JSON(http.StatusBadRequest, ord.HTTPError{Error: "invalid status"})
				return
			}
			f.Status = st
		}
		f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
		f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))

		page, err := svc.FindAll(c.Request.Context(), f)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ord.HTTPError{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

// getOrderHandler godoc
// @Summary      Get an order with catalog-enriched items
// @Tags         orders
// @Produce      json
// @Param        id path string true "order id"
// @Success      200 {object} order.Order
// @Failure      404 {object} order.HTTPError
// @Failure      502 {object} order.HTTPError
// @Router       /orders/{id} [get]
func getOrderHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := svc.FindOne(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ord.ErrNotFound) {
				c.JSON(http.StatusNotFound, ord.HTTPError{Error: err.Error()})
				return
			}
			// Most likely the catalog: reads need it for item names.
			c.JSON(http.StatusBadGateway, ord.HTTPError{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// updateOrderStatusHandler godoc
// @Summary      Change order status
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id      path string                    true "order id"
// @Param        request body order.ChangeStatusRequest true "new status"
// @Success      200 {object} order.Order
// @Failure      400 {object} order.HTTPError
// @Failure      404 {object} order.HTTPError
// @Router       /orders/{id}/status [put]
func updateOrderStatusHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ord.ChangeStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ord.HTTPError{Error: "invalid json"})
			return
		}
		st, ok := ord.ParseStatus(req.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, ord.HTTPError{Error: "invalid status"})
			return
		}
		o, err := svc.ChangeStatus(c.Request.Context(), c.Param("id"), st)
		if err != nil {
			switch {
			case errors.Is(err, ord.ErrNotFound):
				c.JSON(http.StatusNotFound, ord.HTTPError{Error: err.Error()})
			case errors.Is(err, ord.ErrSameStatus):
				c.JSON(http.StatusBadRequest, ord.HTTPError{Error: err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, ord.HTTPError{Error: err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// createPaymentSessionHandler godoc
// @Summary      Request a hosted payment session for an order
// @Tags         payments
// @Produce      json
// @Param        id path string true "order id"
// @Success      201 {object} order.PaymentSession
// @Failure      400 {object} order.HTTPError
// @Failure      404 {object} order.HTTPError
// @Router       /orders/{id}/payment-session [post]
func createPaymentSessionHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		// FindOne first: the payment payload needs catalog-resolved names.
		o, err := svc.FindOne(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ord.ErrNotFound) {
				c.JSON(http.StatusNotFound, ord.HTTPError{Error: err.Error()})
				return
			}
			c.JSON(http.StatusBadGateway, ord.HTTPError{Error: err.Error()})
			return
		}
		sess, err := svc.CreatePaymentSession(c.Request.Context(), o)
		if err != nil {
			if errors.Is(err, ord.ErrPaymentsDisabled) {
				c.JSON(http.StatusBadRequest, ord.HTTPError{Error: err.Error()})
				return
			}
			c.JSON(http.StatusBadGateway, ord.HTTPError{Error: err.Error()})
			return
		}
		c.JSON(http.StatusCreated, sess)
	}
}

// orderPaidHandler godoc
// @Summary      Payment confirmation webhook
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body order.PaidOrderRequest true "charge id and receipt"
// @Success      200 {object} order.Order
// @Failure      400 {object} order.HTTPError
// @Failure      404 {object} order.HTTPError
// @Router       /payments/paid [post]
func orderPaidHandler(svc *ord.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ord.PaidOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == "" {
			c.JSON(http.StatusBadRequest, ord.HTTPError{Error: "invalid json"})
			return
		}
		o, err := svc.PaidOrder(c.Request.Context(), req)
		if err != nil {
			switch {
			case errors.Is(err, ord.ErrNotFound):
				c.JSON(http.StatusNotFound, ord.HTTPError{Error: err.Error()})
			case errors.Is(err, ord.ErrPaymentsDisabled):
				c.JSON(http.StatusBadRequest, ord.HTTPError{Error: err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, ord.HTTPError{Error: err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, o)
	}
}
