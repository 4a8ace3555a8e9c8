package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/david/contract-ledger/internal/models"
	"github.com/david/contract-ledger/internal/render"
)

type stateResponse struct {
	ContractID string              `json:"contract_id"`
	Version    int                 `json:"version"`
	AsOf       *models.Date        `json:"as_of,omitempty"`
	Contract   models.BaseContract `json:"contract"`
}

type redlineResponse struct {
	ContractID string             `json:"contract_id"`
	Version    int                `json:"version"`
	Redline    string             `json:"redline"`
	Added      []render.ClauseRef `json:"added"`
	Removed    []render.ClauseRef `json:"removed"`
}

func (s *Server) handleIngestBase(c echo.Context) error {
	filename, data, err := s.readUpload(c)
	if err != nil {
		return err
	}
	res, err := s.Pipeline.IngestBase(c.Request().Context(), filename, data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

func (s *Server) handleIngestAddendum(c echo.Context) error {
	contractID := c.Param("id")
	filename, data, err := s.readUpload(c)
	if err != nil {
		return err
	}
	res, err := s.Pipeline.IngestAddendum(c.Request().Context(), contractID, filename, data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

func (s *Server) handleGetState(c echo.Context) error {
	contractID := c.Param("id")

	var asOf *models.Date
	if raw := c.QueryParam("as_of"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "as_of must be YYYY-MM-DD")
		}
		asOf = &d
	}

	contract, version, err := s.Pipeline.State(c.Request().Context(), contractID, asOf)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stateResponse{ContractID: contractID, Version: version, AsOf: asOf, Contract: contract})
}

func (s *Server) handleListVersions(c echo.Context) error {
	infos, err := s.Pipeline.Versions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"contract_id": c.Param("id"), "versions": infos})
}

func (s *Server) handleGetVersion(c echo.Context) error {
	version, err := versionParam(c)
	if err != nil {
		return err
	}
	contract, err := s.Pipeline.LoadVersion(c.Request().Context(), c.Param("id"), version)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, contract)
}

func (s *Server) handleGetRedline(c echo.Context) error {
	version, err := versionParam(c)
	if err != nil {
		return err
	}
	contractID := c.Param("id")
	rl, err := s.Pipeline.Redline(c.Request().Context(), contractID, version)
	if err != nil {
		return err
	}

	resp := redlineResponse{
		ContractID: contractID,
		Version:    version,
		Redline:    rl.Markdown(),
		Added:      rl.Added,
		Removed:    rl.Removed,
	}
	if resp.Added == nil {
		resp.Added = []render.ClauseRef{}
	}
	if resp.Removed == nil {
		resp.Removed = []render.ClauseRef{}
	}
	return c.JSON(http.StatusOK, resp)
}

func versionParam(c echo.Context) (int, error) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "version must be a positive integer")
	}
	return version, nil
}

// readUpload returns the multipart "file" field, rejecting anything larger
// than the configured limit.
func (s *Server) readUpload(c echo.Context) (string, []byte, error) {
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, s.maxUpload+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
		}
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	if fh.Size > s.maxUpload {
		return "", nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload is %d bytes, limit is %d", fh.Size, s.maxUpload))
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	if err != nil {
		return "", nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.maxUpload {
		return "", nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
	}
	return fh.Filename, data, nil
}
