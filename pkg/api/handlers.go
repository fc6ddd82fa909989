package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"avaneesh/dnp3-cache/pkg/command"
	"avaneesh/dnp3-cache/pkg/history"
	"avaneesh/dnp3-cache/pkg/master"
	"avaneesh/dnp3-cache/pkg/types"
)

type pointTypeResponse struct {
	Group     uint16              `json:"group"`
	Variation uint16              `json:"variation"`
	Name      string              `json:"name"`
	Values    types.IndexValueMap `json:"values"`
	Error     string              `json:"error,omitempty"`
}

type pointResponse struct {
	Index uint16           `json:"index"`
	Value types.PointValue `json:"value"`
	Error string           `json:"error,omitempty"`
}

type commandRequest struct {
	Value types.PointValue `json:"value"`
}

type commandResponse struct {
	ID        uuid.UUID        `json:"id"`
	Group     uint16           `json:"group"`
	Variation uint16           `json:"variation"`
	Index     uint16           `json:"index"`
	Command   string           `json:"command"`
	Mode      string           `json:"mode"`
	Value     types.PointValue `json:"value"`
	IssuedAt  time.Time        `json:"issued_at"`
	Status    string           `json:"status,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type commandSetRequest struct {
	Commands []master.PointCommand `json:"commands"`
}

type commandSetResponse struct {
	Commands []commandResponse `json:"commands"`
}

type historyResponse struct {
	Group     uint16           `json:"group"`
	Variation uint16           `json:"variation"`
	Index     uint16           `json:"index"`
	Records   []history.Record `json:"records"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) getPointType(w http.ResponseWriter, r *http.Request) {
	group, variation, err := pointTypeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	values, err := s.station.GetByPointType(r.Context(), group, variation)
	resp := pointTypeResponse{Group: group, Variation: variation, Values: values}
	if gv, rerr := types.ResolveGroupVariation(group, variation); rerr == nil {
		resp.Name = gv.String()
	}
	if err != nil {
		resp.Error = err.Error()
		if resp.Values == nil {
			resp.Values = types.IndexValueMap{}
		}
	}
	writeJSON(w, statusFor(err), resp)
}

func (s *Server) getPoint(w http.ResponseWriter, r *http.Request) {
	group, variation, err := pointTypeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	index, err := uint16Param(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	v, err := s.station.GetByPointTypeAndIndex(r.Context(), group, variation, index)
	resp := pointResponse{Index: index, Value: v}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, statusFor(err), resp)
}

// setPoint issues a control command. With ?wait=true the response carries
// the outstation's status.
func (s *Server) setPoint(w http.ResponseWriter, r *http.Request) {
	group, variation, err := pointTypeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	index, err := uint16Param(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if req.Value.IsAbsent() {
		writeError(w, http.StatusBadRequest, errors.New("value is required"))
		return
	}

	receipt, err := s.station.SendControlCommand(group, variation, index, req.Value)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := newCommandResponse(receipt)
	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultCommandWait)
	defer cancel()
	writeJSON(w, awaitCommand(ctx, receipt, &resp), resp)
}

// setPoints issues a command set in one request. Every element is checked
// before anything is sent.
func (s *Server) setPoints(w http.ResponseWriter, r *http.Request) {
	var req commandSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	for i, c := range req.Commands {
		if c.Value.IsAbsent() {
			writeError(w, http.StatusBadRequest, fmt.Errorf("command %d: value is required", i))
			return
		}
	}

	receipts, err := s.station.SendControlCommands(req.Commands)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := commandSetResponse{Commands: make([]commandResponse, len(receipts))}
	for i, receipt := range receipts {
		resp.Commands[i] = newCommandResponse(receipt)
	}
	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultCommandWait)
	defer cancel()
	status := http.StatusOK
	for i, receipt := range receipts {
		switch awaitCommand(ctx, receipt, &resp.Commands[i]) {
		case http.StatusGatewayTimeout:
			status = http.StatusGatewayTimeout
		case http.StatusBadGateway:
			if status == http.StatusOK {
				status = http.StatusBadGateway
			}
		}
	}
	writeJSON(w, status, resp)
}

func newCommandResponse(receipt *master.CommandReceipt) commandResponse {
	return commandResponse{
		ID:        receipt.ID,
		Group:     receipt.PointType.Group,
		Variation: receipt.PointType.Variation,
		Index:     receipt.Index,
		Command:   receipt.Command.String(),
		Mode:      receipt.Mode.String(),
		Value:     receipt.Mirror.Value,
		IssuedAt:  receipt.IssuedAt,
	}
}

// awaitCommand fills in the outcome of receipt and returns the HTTP status
// for it: 200 on success, 502 when the outstation rejected the command and
// 504 when ctx ran out first.
func awaitCommand(ctx context.Context, receipt *master.CommandReceipt, resp *commandResponse) int {
	res, err := receipt.Wait(ctx)
	if err != nil {
		resp.Error = err.Error()
		return http.StatusGatewayTimeout
	}

	resp.Status = res.Status.String()
	if !res.Succeeded() {
		if res.Err != nil {
			resp.Error = res.Err.Error()
		}
		return http.StatusBadGateway
	}
	return http.StatusOK
}

// getLatest returns the last recorded value of every index of a point type
func (s *Server) getLatest(w http.ResponseWriter, r *http.Request) {
	gv, ok := s.historyPointType(w, r)
	if !ok {
		return
	}

	values, err := s.history.Latest(r.Context(), gv.ID())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, pointTypeResponse{
		Group:     gv.Group(),
		Variation: gv.Variation(),
		Name:      gv.String(),
		Values:    values,
	})
}

// getHistory returns the recorded values of one point, newest first
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	gv, ok := s.historyPointType(w, r)
	if !ok {
		return
	}
	index, err := uint16Param(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
	}

	records, err := s.history.History(r.Context(), gv.ID(), index, limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Group:     gv.Group(),
		Variation: gv.Variation(),
		Index:     index,
		Records:   records,
	})
}

func (s *Server) historyPointType(w http.ResponseWriter, r *http.Request) (types.GroupVariation, bool) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, ErrHistoryDisabled)
		return 0, false
	}
	group, variation, err := pointTypeParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return 0, false
	}
	gv, err := types.ResolveGroupVariation(group, variation)
	if err != nil {
		writeError(w, statusFor(err), err)
		return 0, false
	}
	return gv, true
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	view, err := s.station.Snapshot(r.Context())
	writeJSON(w, statusFor(err), view)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.station.Statistics().Snapshot())
}

// statusFor maps an error to the HTTP status reported for it
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, types.ErrUnknownPointType),
		errors.Is(err, command.ErrInvalidCommandCode),
		errors.Is(err, command.ErrUnsupportedCommandPoint),
		errors.Is(err, command.ErrInvalidCommandValue),
		errors.Is(err, master.ErrEmptyCommandSet):
		return http.StatusBadRequest
	case errors.Is(err, master.ErrPollTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func pointTypeParams(r *http.Request) (uint16, uint16, error) {
	group, err := uint16Param(r, "group")
	if err != nil {
		return 0, 0, err
	}
	variation, err := uint16Param(r, "variation")
	if err != nil {
		return 0, 0, err
	}
	return group, variation, nil
}

func uint16Param(r *http.Request, name string) (uint16, error) {
	raw := mux.Vars(r)[name]
	v, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return uint16(v), nil
}

// writeJSON encodes v before writing the header, so an encoding failure
// is reported as a 500 instead of a truncated body
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	e := json.NewEncoder(&buf)
	e.SetIndent("", "    ")
	if err := e.Encode(v); err != nil {
		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		w.WriteHeader(http.StatusInternalServerError)
		body, _ := json.Marshal(errorResponse{Error: "failed to encode response: " + err.Error()})
		w.Write(body)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
