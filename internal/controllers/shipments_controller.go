package controllers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/RealZimboGuy/shipflow/internal/engine"
	"github.com/RealZimboGuy/shipflow/internal/util"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/models"
)

type ShipmentsController struct {
	*AuthController
	Engine *engine.WorkflowEngine
}

func NewShipmentsController(auth *AuthController, eng *engine.WorkflowEngine) *ShipmentsController {
	return &ShipmentsController{AuthController: auth, Engine: eng}
}

func (c *ShipmentsController) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.CreateShipmentRequest](r, false)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	s, err := shipmentFromRequest(req)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws, err := c.Engine.StartTracking(r.Context(), s, req.InitialStep)
	if err != nil {
		writeError(w, r, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusCreated, models.CreateShipmentResponse{ID: s.ID, CurrentStep: ws.CurrentStepCode})
}

func (c *ShipmentsController) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	id, err := util.PathID(r, "id")
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := c.Engine.GetShipment(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, toShipmentResponse(s))
}

func (c *ShipmentsController) handleDeleteShipment(w http.ResponseWriter, r *http.Request) {
	id, err := util.PathID(r, "id")
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := c.Engine.DeleteShipment(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func shipmentFromRequest(req models.CreateShipmentRequest) (*domain.Shipment, error) {
	mawb := strings.TrimSpace(req.MAWBNumber)
	if mawb == "" {
		return nil, errors.New("mawbNumber is required")
	}
	s := &domain.Shipment{
		MAWBNumber: mawb,
		OriginPort: nullString(req.OriginPort),
		DestPort:   nullString(req.DestPort),
		Consignee:  nullString(req.Consignee),
	}
	if req.ETA != nil {
		s.ETA = sql.NullTime{Time: req.ETA.UTC(), Valid: true}
	}
	if req.LFD != "" {
		lfd, err := time.Parse(time.DateOnly, req.LFD)
		if err != nil {
			return nil, errors.New("lfd must be YYYY-MM-DD")
		}
		s.LFD = sql.NullTime{Time: lfd, Valid: true}
	}
	if req.Pieces != nil {
		s.Pieces = sql.NullInt64{Int64: *req.Pieces, Valid: true}
	}
	if req.Weight != nil {
		s.Weight = sql.NullFloat64{Float64: *req.Weight, Valid: true}
	}
	return s, nil
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}

func toShipmentResponse(s *domain.Shipment) models.ShipmentResponse {
	out := models.ShipmentResponse{
		ID:         s.ID,
		MAWBNumber: s.MAWBNumber,
		OriginPort: s.OriginPort.String,
		DestPort:   s.DestPort.String,
		Consignee:  s.Consignee.String,
		Pieces:     s.Pieces.Int64,
		Weight:     s.Weight.Float64,
		Status:     s.Status,
		Progress:   s.Progress,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	if s.ETA.Valid {
		eta := s.ETA.Time
		out.ETA = &eta
	}
	if s.LFD.Valid {
		out.LFD = s.LFD.Time.Format(time.DateOnly)
	}
	return out
}
