package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetPaymentQuote handles GET /api/payments/quote: what to send, and where, before posting a job.
func (s *Server) GetPaymentQuote(c *fiber.Ctx) error {
	return c.JSON(s.paymentService.Quote())
}

// GetMyPayments handles GET /api/me/payments
func (s *Server) GetMyPayments(c *fiber.Ctx) error {
	payments, err := s.paymentService.ListMine(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(payments)
}

// GetPayment handles GET /api/payments/:hash (payer or admin)
func (s *Server) GetPayment(c *fiber.Ctx) error {
	payment, err := s.paymentService.GetByHash(c.UserContext(), currentUserID(c), c.Params("hash"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(payment)
}

// ListPayments handles GET /api/admin/payments?status=&limit=&offset=
func (s *Server) ListPayments(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageLimit)

	payments, err := s.paymentService.List(c.UserContext(), c.Query("status"), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(payments)
}

// ReconcilePayments handles POST /api/admin/payments/reconcile, running one sweep
// over pending payments immediately.
func (s *Server) ReconcilePayments(c *fiber.Ctx) error {
	report, err := s.paymentService.ReconcilePending(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(report)
}
