package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/absenin/absenin-api/internal/service"
	appErrors "github.com/absenin/absenin-api/pkg/errors"
	"github.com/absenin/absenin-api/pkg/response"
)

// MealHandler exposes meal verification endpoints.
type MealHandler struct {
	service *service.MealService
}

// NewMealHandler constructs a meal handler.
func NewMealHandler(svc *service.MealService) *MealHandler {
	return &MealHandler{service: svc}
}

// Verify godoc
// @Summary Record a meal verification for an eligible student
// @Tags Meals
// @Accept json
// @Produce json
// @Param payload body service.VerifyMealRequest true "Verification payload"
// @Success 201 {object} response.Envelope
// @Router /meals/verifications [post]
func (h *MealHandler) Verify(c *gin.Context) {
	var req service.VerifyMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	verifiedBy := ""
	if claims := claimsFromContext(c); claims != nil {
		verifiedBy = claims.UserID
	}
	verification, err := h.service.Verify(c.Request.Context(), req, verifiedBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, verification)
}

type redeemPassRequest struct {
	Token string `json:"token" binding:"required"`
}

// RedeemPass godoc
// @Summary Redeem a QR meal pass token
// @Tags Meals
// @Accept json
// @Produce json
// @Param payload body redeemPassRequest true "Pass token"
// @Success 201 {object} response.Envelope
// @Router /meals/verifications/pass [post]
func (h *MealHandler) RedeemPass(c *gin.Context) {
	var req redeemPassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	verifiedBy := ""
	if claims := claimsFromContext(c); claims != nil {
		verifiedBy = claims.UserID
	}
	verification, err := h.service.VerifyByPass(c.Request.Context(), req.Token, verifiedBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, verification)
}

// IssuePass godoc
// @Summary Issue a QR meal pass for an eligible student
// @Tags Meals
// @Produce json
// @Param student_id path string true "Student ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /meals/passes/{student_id} [get]
func (h *MealHandler) IssuePass(c *gin.Context) {
	pass, err := h.service.IssuePass(c.Request.Context(), c.Param("student_id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pass, nil)
}

// List godoc
// @Summary List meal verifications
// @Tags Meals
// @Produce json
// @Param class_id query string false "Class ID"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Param source query string false "Source filter (QR or MANUAL)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /meals/verifications [get]
func (h *MealHandler) List(c *gin.Context) {
	req := service.MealListRequest{ClassID: c.Query("class_id")}
	if date, err := time.Parse("2006-01-02", c.Query("date")); err == nil {
		req.Date = &date
	}
	if source := c.Query("source"); source != "" {
		req.Source = &source
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		req.PageSize = size
	}

	rows, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}
