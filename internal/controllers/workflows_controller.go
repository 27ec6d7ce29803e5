package controllers

import (
	"net/http"

	"github.com/RealZimboGuy/shipflow/internal/engine"
	"github.com/RealZimboGuy/shipflow/internal/util"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/core"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/models"
)

// WorkflowsController exposes a shipment's workflow progress and event log.
type WorkflowsController struct {
	*AuthController
	Engine *engine.WorkflowEngine
}

func NewWorkflowsController(auth *AuthController, eng *engine.WorkflowEngine) *WorkflowsController {
	return &WorkflowsController{AuthController: auth, Engine: eng}
}

func (c *WorkflowsController) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	id, err := util.PathID(r, "id")
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	progress, err := c.Engine.Progress(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, progress)
}

// handleAdvance takes an optional JSON object whose keys are added to the
// advance event's details.
func (c *WorkflowsController) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id, err := util.PathID(r, "id")
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	extra, err := util.DecodeJSONBody[map[string]any](r, true)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}
	res, err := c.Engine.Advance(r.Context(), id, core.ActorFromContext(r.Context()), extra)
	if err != nil {
		writeError(w, r, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, models.AdvanceWorkflowResponse{
		ShipmentID:  id,
		FromStep:    res.FromStep,
		ToStep:      res.ToStep,
		StepName:    res.StepName,
		IsCompleted: res.Completed,
	})
}

func (c *WorkflowsController) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	id, err := util.PathID(r, "id")
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := c.Engine.Events(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]models.EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, engine.ToEventResponse(ev))
	}
	util.WriteJSONResponse(w, http.StatusOK, out)
}
