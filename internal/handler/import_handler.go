package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jos-ren/sors-ledger/internal/domain"
	"github.com/jos-ren/sors-ledger/internal/service"
	"github.com/jos-ren/sors-ledger/pkg/logger"
	"github.com/labstack/echo/v4"
)

type ImportHandler struct {
	service service.ImportService
	logger  *logger.Logger
}

func NewImportHandler(service service.ImportService, log *logger.Logger) *ImportHandler {
	return &ImportHandler{
		service: service,
		logger:  log,
	}
}

func (h *ImportHandler) CreateSession(c echo.Context) error {
	ctx := c.Request().Context()

	sessionID, err := h.service.CreateSession(ctx)
	if err != nil {
		h.logger.Error(ctx, "Failed to create session",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create session",
		})
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"session_id": sessionID,
	})
}

func (h *ImportHandler) UploadFile(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "file is required",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.logger.Error(ctx, "Failed to open file",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to open file",
		})
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		h.logger.Error(ctx, "Failed to read file",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to read file",
		})
	}

	mapping, err := parseMapping(c.FormValue("mapping"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid mapping: " + err.Error(),
		})
	}

	file, err := h.service.AddFile(ctx, sessionID, fileHeader.Filename, content, c.FormValue("bank_id"), mapping)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusAccepted, file)
}

func (h *ImportHandler) GetSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")

	files, err := h.service.Files(ctx, sessionID)
	if err != nil {
		return h.errorResponse(c, err)
	}
	txs, err := h.service.Transactions(ctx, sessionID)
	if err != nil {
		return h.errorResponse(c, err)
	}
	warnings, err := h.service.Warnings(ctx, sessionID)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id":   sessionID,
		"files":        files,
		"transactions": txs,
		"warnings":     warnings,
	})
}

func (h *ImportHandler) ReassignBank(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")
	fileName := c.Param("file")

	var req struct {
		BankID  string          `json:"bank_id"`
		Mapping json.RawMessage `json:"mapping"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}
	if req.BankID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "bank_id is required",
		})
	}

	mapping, err := parseMapping(string(req.Mapping))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid mapping: " + err.Error(),
		})
	}

	if err := h.service.ReassignBank(ctx, sessionID, fileName, req.BankID, mapping); err != nil {
		return h.errorResponse(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *ImportHandler) ResolveConflict(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		CategoryID string `json:"category_id"`
	}
	if err := c.Bind(&req); err != nil || req.CategoryID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "category_id is required",
		})
	}

	if err := h.service.ResolveConflict(ctx, c.Param("id"), c.Param("txid"), req.CategoryID); err != nil {
		return h.errorResponse(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *ImportHandler) UndoResolution(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.service.UndoResolution(ctx, c.Param("id"), c.Param("txid")); err != nil {
		return h.errorResponse(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *ImportHandler) AssignCategory(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		CategoryID string `json:"category_id"`
	}
	if err := c.Bind(&req); err != nil || req.CategoryID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "category_id is required",
		})
	}

	if err := h.service.AssignCategory(ctx, c.Param("id"), c.Param("txid"), req.CategoryID); err != nil {
		return h.errorResponse(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *ImportHandler) Acknowledge(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.service.Acknowledge(ctx, c.Param("id"), c.Param("txid")); err != nil {
		return h.errorResponse(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *ImportHandler) SetDuplicateAction(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Action string `json:"action"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	action := domain.CommitAction(req.Action)
	if action != domain.CommitActionImport && action != domain.CommitActionSkip {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "action must be import or skip",
		})
	}

	if err := h.service.SetDuplicateAction(ctx, c.Param("id"), c.Param("txid"), action); err != nil {
		return h.errorResponse(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *ImportHandler) SkipAllDuplicates(c echo.Context) error {
	if err := h.service.SkipAllDuplicates(c.Request().Context(), c.Param("id")); err != nil {
		return h.errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ImportHandler) ImportAllDuplicates(c echo.Context) error {
	if err := h.service.ImportAllDuplicates(c.Request().Context(), c.Param("id")); err != nil {
		return h.errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ImportHandler) Commit(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.service.Commit(ctx, c.Param("id"))
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

func (h *ImportHandler) ListCategories(c echo.Context) error {
	categories, err := h.service.Categories(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"categories": categories,
	})
}

func (h *ImportHandler) ListBanks(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"banks": h.service.Banks(c.Request().Context()),
	})
}

func (h *ImportHandler) errorResponse(c echo.Context, err error) error {
	var pending *domain.PendingConflictsError
	if errors.As(err, &pending) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":           "conflicts must be resolved before commit",
			"transaction_ids": pending.TransactionIDs,
		})
	}

	var readErr *domain.ReadError
	if errors.As(err, &readErr) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": readErr.Error(),
		})
	}

	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrFileNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrCategoryNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrUnknownBank),
		errors.Is(err, domain.ErrMissingMapping),
		errors.Is(err, domain.ErrNotInConflict),
		errors.Is(err, domain.ErrInvalidResolution),
		errors.Is(err, domain.ErrNotUnassigned),
		errors.Is(err, domain.ErrNotResolved),
		errors.Is(err, domain.ErrNotDuplicate),
		errors.Is(err, domain.ErrSessionCommitted):
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	}

	h.logger.Error(c.Request().Context(), "Unhandled error",
		"error", err,
	)
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": "internal error",
	})
}

func parseMapping(raw string) (*domain.ColumnMapping, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	mapping := domain.DefaultColumnMapping()
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		return nil, err
	}
	return &mapping, nil
}
