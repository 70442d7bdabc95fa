package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ahmethakanbesel/nbp-datahub/internal/apperror"
	"github.com/ahmethakanbesel/nbp-datahub/internal/job"
	"github.com/ahmethakanbesel/nbp-datahub/internal/rate"
)

type handler struct {
	svc    *rate.Service
	jobSvc *job.Service
}

func (h *handler) health(c *gin.Context) {
	writeJSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listRates(c *gin.Context) {
	req := rate.ListRatesRequest{Code: strings.TrimSpace(c.Query("code"))}

	var err error
	if req.From, err = parseDate(c.Query("from")); err != nil {
		writeError(c, http.StatusBadRequest, "invalid from format, expected YYYY-MM-DD")
		return
	}
	if req.To, err = parseDate(c.Query("to")); err != nil {
		writeError(c, http.StatusBadRequest, "invalid to format, expected YYYY-MM-DD")
		return
	}

	if appErr := req.Validate(); appErr != nil {
		writeError(c, appErr.HTTPStatus(), appErr.Message())
		return
	}

	points, err := h.svc.ListRates(c.Request.Context(), req)
	if err != nil {
		writeAppError(c, err)
		return
	}

	if c.Query("format") == "csv" {
		writeCSV(c, points)
		return
	}
	writeJSON(c, http.StatusOK, points)
}

func (h *handler) getPartition(c *gin.Context) {
	date, err := rate.ParseDate(c.Param("date"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	points, err := h.svc.Partition(c.Request.Context(), date)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, points)
}

func (h *handler) listDates(c *gin.Context) {
	dates, err := h.svc.Dates(c.Request.Context())
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, dates)
}

func (h *handler) getJob(c *gin.Context) {
	req := job.GetJobRequest{ID: c.Param("id")}
	if appErr := req.Validate(); appErr != nil {
		writeError(c, appErr.HTTPStatus(), appErr.Message())
		return
	}

	j, err := h.jobSvc.Get(c.Request.Context(), req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, j)
}

func (h *handler) listJobs(c *gin.Context) {
	req := job.ListJobsRequest{Status: job.Status(c.Query("status"))}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		req.Limit = n
	}

	jobs, err := h.jobSvc.List(c.Request.Context(), req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, jobs)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return rate.ParseDate(s)
}

func writeAppError(c *gin.Context, err error) {
	var ae *apperror.AppError
	if errors.As(err, &ae) {
		writeError(c, ae.HTTPStatus(), ae.Message())
		return
	}
	writeError(c, http.StatusInternalServerError, err.Error())
}
