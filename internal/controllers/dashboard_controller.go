package controllers

import (
	"net/http"

	"github.com/RealZimboGuy/shipflow/internal/engine"
	"github.com/RealZimboGuy/shipflow/internal/util"
)

type DashboardController struct {
	*AuthController
	Engine *engine.WorkflowEngine
}

func NewDashboardController(auth *AuthController, eng *engine.WorkflowEngine) *DashboardController {
	return &DashboardController{AuthController: auth, Engine: eng}
}

func (c *DashboardController) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.Engine.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, stats)
}
