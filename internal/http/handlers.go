package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/battled/internal/battle"
)

// handleIndex returns a static informational message.
func (s *Server) handleIndex(c echo.Context) error {
	return c.JSON(http.StatusOK, IndexResponse{Message: indexMessage})
}

// handleHealth reports liveness and what was loaded at startup.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Entities: s.info.Entities,
		Model:    s.info.Model,
	})
}

// handlePredict resolves the match named in the request body.
func (s *Server) handlePredict(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := decodePredictRequest(c.Request().Body)
	if err != nil {
		s.logger.Debug(ctx, "invalid predict request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgInvalidRequest})
	}

	pred, err := s.predictor.Resolve(ctx, *req.First, *req.Second)
	switch {
	case errors.Is(err, battle.ErrNotFound):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgNotFound})
	case err != nil:
		s.logger.Error(ctx, "prediction failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgPredictFailed})
	}

	return c.JSON(http.StatusOK, PredictResponse{
		First:      pred.First,
		Second:     pred.Second,
		Winner:     pred.Winner,
		Confidence: pred.Confidence,
	})
}

var errMissingField = errors.New(`body must contain string fields "pokemon 1" and "pokemon 2"`)

// decodePredictRequest accepts exactly one JSON object carrying both names
// as strings. Unknown keys are ignored.
func decodePredictRequest(r io.Reader) (*PredictRequest, error) {
	dec := json.NewDecoder(r)

	var req PredictRequest
	if err := dec.Decode(&req); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after request body")
	}
	if req.First == nil || req.Second == nil {
		return nil, errMissingField
	}
	return &req, nil
}
