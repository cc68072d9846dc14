package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/http_server"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
	bizConsts "github.com/grand-thief-cash/tvaccess/internal/consts"
	"github.com/grand-thief-cash/tvaccess/internal/service"
)

type BulkController struct {
	*core.BaseComponent
	Bulk     service.BulkService         `infra:"dep:bulk_service"`
	Progress *service.RunProgressManager `infra:"dep:run_progress_mgr"`
}

func NewBulkController() *BulkController {
	return &BulkController{BaseComponent: core.NewBaseComponent(bizConsts.COMP_CTRL_BULK)}
}

func init() {
	http_server.RegisterRoutes(func(r chi.Router, c *core.Container) error {
		comp, err := c.Resolve(bizConsts.COMP_CTRL_BULK)
		if err != nil {
			return err
		}
		ctrl, ok := comp.(*BulkController)
		if !ok {
			return fmt.Errorf("bulk_ctrl type assertion failed")
		}

		// 路由分组
		r.Route("/api/v1/bulk-runs", func(r chi.Router) {
			r.Post("/", ctrl.createRun)
			r.Get("/", ctrl.listRuns)
			r.Get("/{id}", ctrl.getRun)
			r.Get("/{id}/progress", ctrl.getRunProgress)
		})
		r.Post("/api/v1/validate", ctrl.validateSubjects)
		r.Get("/api/v1/batcher/stats", ctrl.batcherStats)
		return nil
	})
}

type createRunRequest struct {
	Subjects          []string `json:"subjects"`
	PineIDs           []string `json:"pine_ids"`
	Duration          string   `json:"duration"`
	SkipPreValidation bool     `json:"skip_pre_validation"`
}

func (c *BulkController) createRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	id, err := c.Bulk.StartRun(r.Context(), req.Subjects, req.PineIDs, req.Duration, req.SkipPreValidation)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoSubjects), errors.Is(err, service.ErrNoTargets):
			writeErr(w, http.StatusBadRequest, err.Error())
		default:
			writeErr(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	// 执行是异步的，返回 202 + run_id 供轮询。
	writeJSONStatus(w, http.StatusAccepted, map[string]string{"run_id": id})
}

func (c *BulkController) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	list, err := c.Bulk.ListRuns(r.Context(), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"items": list})
}

func (c *BulkController) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := c.Bulk.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			writeErr(w, http.StatusNotFound, err.Error())
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, run)
}

func (c *BulkController) getRunProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if p := c.Progress.Get(id); p != nil {
		writeJSON(w, p)
		return
	}
	// 运行已终态时进度条目已被清理，由运行记录合成一份。
	run, err := c.Bulk.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			writeErr(w, http.StatusNotFound, err.Error())
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	percent := 0
	processed := run.Success + run.Errors
	if run.Total > 0 {
		percent = processed * 100 / run.Total
	}
	prog := service.RunProgress{
		RunID:     run.ID,
		Processed: processed,
		Total:     run.Total,
		Success:   run.Success,
		Errors:    run.Errors,
		Percent:   percent,
	}
	if run.FinishedAt != nil {
		prog.Updated = *run.FinishedAt
	}
	writeJSON(w, prog)
}

type validateRequest struct {
	Subjects []string `json:"subjects"`
}

func (c *BulkController) validateSubjects(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	pv, err := c.Bulk.ValidateSubjects(r.Context(), req.Subjects)
	if err != nil {
		if errors.Is(err, service.ErrNoSubjects) {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, pv)
}

func (c *BulkController) batcherStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, c.Bulk.BatcherStats())
}
