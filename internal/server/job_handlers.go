package server

import (
	"errors"

	"chainhire/internal/models"
	"chainhire/internal/repository"
	"chainhire/internal/service"

	"github.com/gofiber/fiber/v2"
)

// paymentRequiredResponse is the 402 body. It carries the quote so the client can
// prompt the wallet without a second round trip.
type paymentRequiredResponse struct {
	models.ErrorResponse
	Quote service.Quote `json:"quote"`
}

// GetJobs handles GET /api/jobs?q=&tag=&job_type=&limit=&offset=
// @Summary List jobs
// @Tags jobs
// @Produce json
// @Param q query string false "Search in title and description"
// @Param tag query string false "Filter by tag"
// @Param job_type query string false "Filter by job type"
// @Param limit query int false "Page size"
// @Param offset query int false "Rows to skip"
// @Success 200 {array} models.Job
// @Router /jobs [get]
func (s *Server) GetJobs(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPageLimit)

	jobs, err := s.jobService.ListJobs(c.UserContext(), repository.JobFilter{
		Query:   c.Query("q"),
		Tag:     c.Query("tag"),
		JobType: c.Query("job_type"),
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(jobs)
}

// GetJob handles GET /api/jobs/:id
// @Summary Get job
// @Tags jobs
// @Produce json
// @Param id path int true "Job ID"
// @Success 200 {object} models.Job
// @Failure 404 {object} models.ErrorResponse
// @Router /jobs/{id} [get]
func (s *Server) GetJob(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	viewerID, _ := s.optionalUserID(c)

	job, err := s.jobService.GetJob(c.UserContext(), viewerID, id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(job)
}

// GetMyJobs handles GET /api/me/jobs, including jobs still awaiting payment.
// @Summary My jobs
// @Tags jobs
// @Produce json
// @Success 200 {array} models.Job
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /me/jobs [get]
func (s *Server) GetMyJobs(c *fiber.Ctx) error {
	jobs, err := s.jobService.ListMyJobs(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(jobs)
}

// CreateJob handles POST /api/jobs. The body includes the hash of the fee transfer.
// Responds 201 when the job is live, 202 while the payment awaits confirmations and
// 402 when no valid payment backs the posting.
// @Summary Create job
// @Description Publish a job backed by the hash of the posting fee transfer
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body service.CreateJobInput true "Job posting"
// @Success 201 {object} service.CreateJobResult
// @Success 202 {object} service.CreateJobResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 402 {object} paymentRequiredResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /jobs [post]
func (s *Server) CreateJob(c *fiber.Ctx) error {
	var req service.CreateJobInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	req.UserID = currentUserID(c)

	res, err := s.jobService.CreateJob(c.UserContext(), req)
	if err != nil {
		if models.ErrorCode(err) == models.CodePaymentRequired {
			return s.respondPaymentRequired(c, err)
		}
		return respondServiceError(c, err)
	}

	status := fiber.StatusCreated
	if res.Status == models.JobStatusPendingPayment {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(res)
}

func (s *Server) respondPaymentRequired(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	errors.As(err, &appErr)

	body := paymentRequiredResponse{
		ErrorResponse: models.ErrorResponse{Error: appErr.Message, Code: appErr.Code},
		Quote:         s.paymentService.Quote(),
	}
	if appErr.Err != nil {
		body.Details = appErr.Err.Error()
	}
	return c.Status(fiber.StatusPaymentRequired).JSON(body)
}

// ApplyToJob handles POST /api/jobs/:id/apply
// @Summary Apply to job
// @Tags jobs
// @Accept json
// @Produce json
// @Param id path int true "Job ID"
// @Param request body object{cover_letter=string} true "Application"
// @Success 201 {object} models.JobApplication
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /jobs/{id}/apply [post]
func (s *Server) ApplyToJob(c *fiber.Ctx) error {
	jobID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		CoverLetter string `json:"cover_letter"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	app, err := s.jobService.Apply(c.UserContext(), currentUserID(c), jobID, req.CoverLetter)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(app)
}

// GetJobApplications handles GET /api/jobs/:id/applications (job poster only)
// @Summary List applications
// @Tags jobs
// @Produce json
// @Param id path int true "Job ID"
// @Success 200 {array} models.JobApplication
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /jobs/{id}/applications [get]
func (s *Server) GetJobApplications(c *fiber.Ctx) error {
	jobID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	apps, err := s.jobService.ListApplications(c.UserContext(), currentUserID(c), jobID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(apps)
}

// GetMyApplications handles GET /api/me/applications
func (s *Server) GetMyApplications(c *fiber.Ctx) error {
	apps, err := s.jobService.ListMyApplications(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(apps)
}

// SaveJob handles POST /api/jobs/:id/save
// @Summary Save job
// @Tags jobs
// @Produce json
// @Param id path int true "Job ID"
// @Success 200 {object} object{job_id=int,saved=bool}
// @Security BearerAuth
// @Router /jobs/{id}/save [post]
func (s *Server) SaveJob(c *fiber.Ctx) error {
	jobID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.jobService.SaveJob(c.UserContext(), currentUserID(c), jobID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"job_id": jobID, "saved": true})
}

// UnsaveJob handles DELETE /api/jobs/:id/save
// @Summary Unsave job
// @Tags jobs
// @Produce json
// @Param id path int true "Job ID"
// @Success 200 {object} object{job_id=int,saved=bool}
// @Security BearerAuth
// @Router /jobs/{id}/save [delete]
func (s *Server) UnsaveJob(c *fiber.Ctx) error {
	jobID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.jobService.UnsaveJob(c.UserContext(), currentUserID(c), jobID); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"job_id": jobID, "saved": false})
}

// GetSavedJobs handles GET /api/me/saved-jobs
func (s *Server) GetSavedJobs(c *fiber.Ctx) error {
	saved, err := s.jobService.ListSavedJobs(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(saved)
}

// CloseJob handles POST /api/jobs/:id/close
// @Summary Close job
// @Tags jobs
// @Produce json
// @Param id path int true "Job ID"
// @Success 200 {object} models.Job
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /jobs/{id}/close [post]
func (s *Server) CloseJob(c *fiber.Ctx) error {
	jobID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	job, err := s.jobService.CloseJob(c.UserContext(), currentUserID(c), jobID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(job)
}
