package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/payforge/console/internal/auth"
	"github.com/payforge/console/internal/gatewayapi"
	"github.com/payforge/console/internal/invoice"
	"github.com/payforge/console/internal/logging"
	"github.com/payforge/console/internal/validation"
)

// -----------------------------------------------------------------------------
// Auth handlers
//
// Credentials are verified by the gateway backend; the console only relays
// them and stores the resulting session token in a cookie.
// -----------------------------------------------------------------------------

const sessionCookieMaxAge = 7 * 24 * 60 * 60 // seconds

// loginHandler handles POST /login.
func (s *Server) loginHandler(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "email and password are required",
		})
		return
	}

	user, token, err := s.gateway.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, gatewayapi.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_credentials",
				"message": "Invalid email or password",
			})
			return
		}
		s.gatewayError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(gatewayapi.SessionCookie, token, sessionCookieMaxAge, "/", "", s.cfg.IsProduction(), true)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// logoutHandler handles POST /logout.
func (s *Server) logoutHandler(c *gin.Context) {
	token, err := c.Cookie(gatewayapi.SessionCookie)
	if err == nil && token != "" {
		if lerr := s.gateway.Logout(c.Request.Context(), token); lerr != nil {
			logging.L(c.Request.Context()).Warn("backend logout failed", "error", lerr)
		}
		s.guard.Invalidate(token)
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(gatewayapi.SessionCookie, "", -1, "/", "", s.cfg.IsProduction(), true)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// -----------------------------------------------------------------------------
// Merchant console API
// -----------------------------------------------------------------------------

func (s *Server) sessionToken(c *gin.Context) string {
	token, _ := c.Cookie(gatewayapi.SessionCookie)
	return token
}

// currentUserHandler handles GET /console/api/me.
func (s *Server) currentUserHandler(c *gin.Context) {
	user, _ := auth.UserFrom(c)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// listStoresHandler handles GET /console/api/stores.
func (s *Server) listStoresHandler(c *gin.Context) {
	stores, err := s.gateway.ListStores(c.Request.Context(), s.sessionToken(c))
	if err != nil {
		s.gatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

// listInvoicesHandler handles GET /console/api/invoices?storeId=&limit=.
func (s *Server) listInvoicesHandler(c *gin.Context) {
	storeID := c.Query("storeId")
	if storeID != "" && !validation.IsValidInvoiceID(storeID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_store",
			"message": "storeId is not a valid identifier",
		})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "limit must be a positive integer",
			})
			return
		}
		if n > 200 {
			n = 200
		}
		limit = n
	}

	invoices, err := s.gateway.ListInvoices(c.Request.Context(), s.sessionToken(c), storeID, limit)
	if err != nil {
		s.gatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

// storeCurrenciesHandler handles GET /console/api/stores/:storeId/currencies.
// Returns the full configuration, disabled entries included, so the merchant
// can toggle them.
func (s *Server) storeCurrenciesHandler(c *gin.Context) {
	storeID := c.Param("storeId")
	if !validation.IsValidInvoiceID(storeID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_store",
			"message": "storeId is not a valid identifier",
		})
		return
	}

	currencies, err := s.gateway.GetStoreCurrencies(c.Request.Context(), storeID)
	if err != nil {
		s.gatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currencies": currencies})
}

// updateStoreCurrencyHandler handles PUT /console/api/stores/:storeId/currencies/:currencyId.
func (s *Server) updateStoreCurrencyHandler(c *gin.Context) {
	storeID := c.Param("storeId")
	if !validation.IsValidInvoiceID(storeID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_store",
			"message": "storeId is not a valid identifier",
		})
		return
	}

	var sc invoice.StoreCurrency
	if err := c.ShouldBindJSON(&sc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid currency configuration",
		})
		return
	}
	sc.ID = c.Param("currencyId")

	updated, err := s.gateway.UpdateStoreCurrency(c.Request.Context(), s.sessionToken(c), storeID, sc)
	if err != nil {
		s.gatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": updated})
}

// -----------------------------------------------------------------------------
// Admin console API
// -----------------------------------------------------------------------------

// adminInvoicesHandler handles GET /admin/api/invoices: invoices across all
// stores (no storeId filter).
func (s *Server) adminInvoicesHandler(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	invoices, err := s.gateway.ListInvoices(c.Request.Context(), s.sessionToken(c), "", limit)
	if err != nil {
		s.gatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

// gatewayError translates a backend failure into an HTTP response.
func (s *Server) gatewayError(c *gin.Context, err error) {
	if errors.Is(err, gatewayapi.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Your session has expired. Please log in again.",
		})
		return
	}

	var apiErr *gatewayapi.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{
			"error":   apiErr.Code,
			"message": apiErr.Message,
		})
		return
	}

	logging.L(c.Request.Context()).Error("gateway request failed", "error", err)
	c.JSON(http.StatusBadGateway, gin.H{
		"error":   "gateway_error",
		"message": "The payment gateway is unavailable. Please try again.",
	})
}
