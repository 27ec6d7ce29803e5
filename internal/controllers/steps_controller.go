package controllers

import (
	"net/http"

	"github.com/RealZimboGuy/shipflow/internal/catalog"
	"github.com/RealZimboGuy/shipflow/internal/util"
)

type StepsController struct {
	*AuthController
	Catalog *catalog.Catalog
}

func NewStepsController(auth *AuthController, cat *catalog.Catalog) *StepsController {
	return &StepsController{AuthController: auth, Catalog: cat}
}

type stepResponse struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Next        string `json:"next,omitempty"`
}

type flowchartResponse struct {
	Mermaid string `json:"mermaid"`
}

func (c *StepsController) handleListSteps(w http.ResponseWriter, r *http.Request) {
	steps := c.Catalog.Steps()
	out := make([]stepResponse, 0, len(steps))
	for _, s := range steps {
		out = append(out, stepResponse{Code: s.Code, Name: s.Name, Description: s.Description, Next: s.NextCode})
	}
	util.WriteJSONResponse(w, http.StatusOK, out)
}

func (c *StepsController) handleFlowchart(w http.ResponseWriter, r *http.Request) {
	util.WriteJSONResponse(w, http.StatusOK, flowchartResponse{Mermaid: c.Catalog.Flowchart()})
}
