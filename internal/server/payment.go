package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/payforge/console/internal/logging"
	"github.com/payforge/console/internal/paysession"
	"github.com/payforge/console/internal/validation"
)

// -----------------------------------------------------------------------------
// Payment session API
//
// The payment page's embedded JS drives the session through these endpoints.
// Every successful call returns the full session snapshot so the page renders
// from one source of truth.
// -----------------------------------------------------------------------------

// paymentStateHandler handles GET /api/pay/:invoiceId.
// First call for an invoice creates the session and fetches the invoice; later
// calls return the current snapshot.
func (s *Server) paymentStateHandler(c *gin.Context) {
	sess := s.sessions.GetOrCreate(c.Param("invoiceId"))

	snap := sess.Snapshot()
	if snap.Step == paysession.StepLoading {
		snap = sess.Initialize(c.Request.Context())
	}

	c.JSON(http.StatusOK, snap)
}

// activeSession looks up an existing session; actions never create one, the
// page must load state first.
func (s *Server) activeSession(c *gin.Context) (*paysession.Session, bool) {
	sess, ok := s.sessions.Get(c.Param("invoiceId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "no_session",
			"message": "No active payment session for this invoice",
		})
		return nil, false
	}
	return sess, true
}

// selectNetworkHandler handles POST /api/pay/:invoiceId/network.
func (s *Server) selectNetworkHandler(c *gin.Context) {
	sess, ok := s.activeSession(c)
	if !ok {
		return
	}

	var req struct {
		Network string `json:"network"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || (req.Network != "" && !validation.IsValidToken(req.Network)) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "network must be a short alphanumeric identifier",
		})
		return
	}

	if err := sess.SelectNetwork(req.Network); err != nil {
		s.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// selectCurrencyHandler handles POST /api/pay/:invoiceId/currency.
func (s *Server) selectCurrencyHandler(c *gin.Context) {
	sess, ok := s.activeSession(c)
	if !ok {
		return
	}

	var req struct {
		Token   string `json:"token"`
		Network string `json:"network"`
	}
	if err := c.ShouldBindJSON(&req); err != nil ||
		!validation.IsValidToken(req.Token) || !validation.IsValidToken(req.Network) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "token and network are required",
		})
		return
	}

	if err := sess.SelectCurrency(req.Token, req.Network); err != nil {
		s.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// generateAddressHandler handles POST /api/pay/:invoiceId/address.
// Backend failures come back inside the snapshot (actionError), not as an HTTP
// error: the page stays on currency selection and the payer retries explicitly.
func (s *Server) generateAddressHandler(c *gin.Context) {
	sess, ok := s.activeSession(c)
	if !ok {
		return
	}

	snap, err := sess.GenerateAddress(c.Request.Context())
	if err != nil {
		s.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// backToSelectionHandler handles POST /api/pay/:invoiceId/back.
func (s *Server) backToSelectionHandler(c *gin.Context) {
	sess, ok := s.activeSession(c)
	if !ok {
		return
	}
	sess.BackToSelection()
	c.JSON(http.StatusOK, sess.Snapshot())
}

// resetSessionHandler handles POST /api/pay/:invoiceId/reset.
// Hard clear followed by a fresh initialization from the backend.
func (s *Server) resetSessionHandler(c *gin.Context) {
	sess, ok := s.activeSession(c)
	if !ok {
		return
	}
	sess.Reset()
	c.JSON(http.StatusOK, sess.Initialize(c.Request.Context()))
}

// sessionError maps state machine errors onto HTTP responses.
func (s *Server) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, paysession.ErrInvalidStep):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_step",
			"message": "This action is not available right now",
		})
	case errors.Is(err, paysession.ErrNoSelection):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "no_selection",
			"message": "Select a currency first",
		})
	case errors.Is(err, paysession.ErrUnknownCurrency):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "unknown_currency",
			"message": "This currency is not offered by the store",
		})
	case errors.Is(err, paysession.ErrActionInFlight):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "in_flight",
			"message": "Address generation is already in progress",
		})
	default:
		logging.L(c.Request.Context()).Error("payment session action failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}
}
