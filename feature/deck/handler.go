package deck

import (
	"errors"
	"strconv"

	"deck-sync/core/errs"
	"deck-sync/core/logger"
	"deck-sync/core/worker"
	"deck-sync/feature/deck/models"
	"deck-sync/feature/deck/session"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests of the control API.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the account, sync and conflict routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	accounts := app.Group("/accounts")
	accounts.Get("/", h.HandleListAccounts)
	accounts.Post("/", h.HandleCreateAccount)
	accounts.Get("/:id", h.HandleGetAccount)
	accounts.Delete("/:id", h.HandleDeleteAccount)
	accounts.Post("/:id/sync", h.HandleSyncAccount)
	accounts.Post("/:id/boards/:board/sync", h.HandleSyncBoard)
	accounts.Post("/:id/cards/:card/sync", h.HandleSyncCard)
	accounts.Post("/:id/cards/:card/attachments", h.HandleAddAttachment)
	accounts.Get("/:id/conflicts", h.HandleListConflicts)

	app.Post("/conflicts/:id/resolve", h.HandleResolveConflict)
}

// statusOf maps engine errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errs.ErrSyncInProgress):
		return fiber.StatusConflict
	case errors.Is(err, errs.ErrPrecondition), errors.Is(err, errs.ErrRejected), errors.Is(err, errs.ErrUnauthorized):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrOffline), errors.Is(err, errs.ErrMaintenance), errors.Is(err, worker.ErrPoolClosed):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := statusOf(err)
	if status == fiber.StatusInternalServerError {
		logger.WithRayID(h.service.logger, c).Error("Request failed", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func idParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// HandleListAccounts lists the configured accounts.
// @Summary List accounts
// @Tags accounts
// @Produce json
// @Success 200 {array} models.Account
// @Router /accounts [get]
func (h *Handler) HandleListAccounts(c *fiber.Ctx) error {
	accounts, err := Await(c.Context(), h.service.ReadAccounts)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(accounts)
}

// HandleCreateAccount adds an account.
// @Summary Create account
// @Tags accounts
// @Accept json
// @Produce json
// @Param account body AccountInput true "Account"
// @Success 201 {object} models.Account
// @Failure 422 {object} map[string]string
// @Router /accounts [post]
func (h *Handler) HandleCreateAccount(c *fiber.Ctx) error {
	var in AccountInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	a, err := Await(c.Context(), func(cb Callback[*models.Account]) error {
		return h.service.CreateAccount(in, cb)
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

// HandleGetAccount returns one account.
// @Summary Get account
// @Tags accounts
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} models.Account
// @Failure 404 {object} map[string]string
// @Router /accounts/{id} [get]
func (h *Handler) HandleGetAccount(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	a, err := Await(c.Context(), func(cb Callback[*models.Account]) error {
		return h.service.ReadAccount(id, cb)
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(a)
}

// HandleDeleteAccount removes an account and its local data.
// @Summary Delete account
// @Tags accounts
// @Param id path int true "Account ID"
// @Success 204
// @Router /accounts/{id} [delete]
func (h *Handler) HandleDeleteAccount(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if _, err := Await(c.Context(), func(cb Callback[struct{}]) error {
		return h.service.DeleteAccount(id, cb)
	}); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// sync waits for a session and renders its report. A failed session is
// reported with the status of its error and the partial report.
func (h *Handler) sync(c *fiber.Ctx, op func(cb Callback[session.Report]) error) error {
	report, err := Await(c.Context(), op)
	if err != nil && report.ID == "" {
		return h.fail(c, err)
	}
	if err != nil {
		return c.Status(statusOf(err)).JSON(report)
	}
	return c.JSON(report)
}

// HandleSyncAccount synchronizes every board of an account.
// @Summary Synchronize account
// @Tags sync
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {object} session.Report
// @Failure 409 {object} map[string]string "Sync already running"
// @Failure 503 {object} session.Report "Server offline"
// @Router /accounts/{id}/sync [post]
func (h *Handler) HandleSyncAccount(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	return h.sync(c, func(cb Callback[session.Report]) error {
		return h.service.SynchronizeAccount(id, cb)
	})
}

// HandleSyncBoard synchronizes one board.
// @Summary Synchronize board
// @Tags sync
// @Produce json
// @Param id path int true "Account ID"
// @Param board path int true "Board local ID"
// @Success 200 {object} session.Report
// @Router /accounts/{id}/boards/{board}/sync [post]
func (h *Handler) HandleSyncBoard(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	board, err := idParam(c, "board")
	if err != nil {
		return err
	}
	return h.sync(c, func(cb Callback[session.Report]) error {
		return h.service.SynchronizeBoard(id, board, cb)
	})
}

// HandleSyncCard synchronizes one card.
// @Summary Synchronize card
// @Tags sync
// @Produce json
// @Param id path int true "Account ID"
// @Param card path int true "Card local ID"
// @Success 200 {object} session.Report
// @Router /accounts/{id}/cards/{card}/sync [post]
func (h *Handler) HandleSyncCard(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	card, err := idParam(c, "card")
	if err != nil {
		return err
	}
	if _, err := h.service.account(id); err != nil {
		return h.fail(c, err)
	}
	return h.sync(c, func(cb Callback[session.Report]) error {
		return h.service.SynchronizeCard(card, cb)
	})
}

// HandleAddAttachment uploads the "file" form field as a new attachment.
// @Summary Add attachment
// @Tags cards
// @Accept mpfd
// @Produce json
// @Param id path int true "Account ID"
// @Param card path int true "Card local ID"
// @Param file formData file true "Content"
// @Success 201 {object} models.Attachment
// @Router /accounts/{id}/cards/{card}/attachments [post]
func (h *Handler) HandleAddAttachment(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	card, err := idParam(c, "card")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing file")
	}
	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unreadable file")
	}
	defer f.Close()

	a, err := Await(c.Context(), func(cb Callback[*models.Attachment]) error {
		return h.service.AddAttachment(id, card, fh.Filename, fh.Header.Get("Content-Type"), f, fh.Size, cb)
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

// HandleListConflicts lists the open conflicts of an account.
// @Summary List conflicts
// @Tags conflicts
// @Produce json
// @Param id path int true "Account ID"
// @Success 200 {array} models.Conflict
// @Router /accounts/{id}/conflicts [get]
func (h *Handler) HandleListConflicts(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	conflicts, err := Await(c.Context(), func(cb Callback[[]models.Conflict]) error {
		return h.service.ListConflicts(id, cb)
	})
	if err != nil {
		return h.fail(c, err)
	}
	if conflicts == nil {
		conflicts = []models.Conflict{}
	}
	return c.JSON(conflicts)
}

type resolveRequest struct {
	Keep string `json:"keep"`
}

// HandleResolveConflict keeps the local or the remote side of a conflict.
// @Summary Resolve conflict
// @Tags conflicts
// @Accept json
// @Param id path int true "Conflict ID"
// @Param body body resolveRequest true "keep: local or remote"
// @Success 204
// @Router /conflicts/{id}/resolve [post]
func (h *Handler) HandleResolveConflict(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req resolveRequest
	if err := c.BodyParser(&req); err != nil || (req.Keep != "local" && req.Keep != "remote") {
		return fiber.NewError(fiber.StatusBadRequest, `keep must be "local" or "remote"`)
	}
	if _, err := Await(c.Context(), func(cb Callback[struct{}]) error {
		return h.service.ResolveConflict(id, req.Keep == "local", cb)
	}); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
