package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/absenin/absenin-api/internal/service"
	"github.com/absenin/absenin-api/pkg/export"
	"github.com/absenin/absenin-api/pkg/response"
)

// ReportHandler exposes rollup, anomaly, and export endpoints.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Summary godoc
// @Summary Attendance distribution and daily trend for a class
// @Tags Reports
// @Produce json
// @Param id path string true "Class ID"
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Param narrative query bool false "Include generated narrative"
// @Success 200 {object} response.Envelope
// @Router /reports/classes/{id}/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	withNarrative := c.Query("narrative") == "true"
	result, err := h.service.Summary(c.Request.Context(), c.Param("id"), c.Query("from"), c.Query("to"), withNarrative)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Anomalies godoc
// @Summary Anomaly analysis for a class window
// @Tags Reports
// @Produce json
// @Param id path string true "Class ID"
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /reports/classes/{id}/anomalies [get]
func (h *ReportHandler) Anomalies(c *gin.Context) {
	result, err := h.service.Anomalies(c.Request.Context(), c.Param("id"), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Download the class attendance report as CSV or PDF
// @Tags Reports
// @Produce octet-stream
// @Param id path string true "Class ID"
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Param format query string true "Export format (csv or pdf)"
// @Success 200 {file} binary
// @Router /reports/classes/{id}/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	format := export.Format(c.DefaultQuery("format", "csv"))
	result, err := h.service.Export(c.Request.Context(), c.Param("id"), c.Query("from"), c.Query("to"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+result.FileName)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
