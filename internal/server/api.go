// internal/server/api.go
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tamzrod/modbus-monitor/internal/model"
	"github.com/tamzrod/modbus-monitor/internal/status"
)

const (
	defaultWindow = time.Minute
	maxBodyBytes  = 1 << 16
)

type historyResponse struct {
	Key     string    `json:"key"`
	Offsets []float64 `json:"offsets"`
	Values  []float64 `json:"values"`
}

type statsResponse struct {
	PollCount      uint64  `json:"poll_count"`
	ErrorCount     uint64  `json:"error_count"`
	Running        bool    `json:"running"`
	IntervalMs     int64   `json:"interval_ms"`
	LastDurationMs float64 `json:"last_duration_ms"`
}

type writeRequest struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

type bitRequest struct {
	Key string `json:"key"` // bit designator or name
	On  bool   `json:"on"`
}

type intervalRequest struct {
	IntervalMs int64 `json:"interval_ms"`
}

type readResponse struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

func (s *Server) encode(f Frame) ([]byte, error) {
	f.Stamp = s.now().UnixMilli()
	return json.Marshal(f)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad request: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, status.Take(s.engine, s.now()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		PollCount:      st.PollCount,
		ErrorCount:     st.ErrorCount,
		Running:        st.Running,
		IntervalMs:     st.Interval.Milliseconds(),
		LastDurationMs: float64(st.LastDuration) / float64(time.Millisecond),
	})
}

// handleHistory serves GET /api/history?key=D1.R0&window=60 (seconds).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key required")
		return
	}

	window := defaultWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil || secs < 0 {
			writeError(w, http.StatusBadRequest, "window must be a non-negative number of seconds")
			return
		}
		window = time.Duration(secs * float64(time.Second))
	}

	series := s.engine.History(key, window)
	resp := historyResponse{Key: key, Offsets: series.Offsets, Values: series.Values}
	if resp.Offsets == nil {
		resp.Offsets, resp.Values = []float64{}, []float64{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRead serves GET /api/read?key=D1.R0, a read outside the schedule.
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	reg, ok := s.findRegister(key)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown register %q", key))
		return
	}
	v, ok := s.engine.ReadRegisterSafe(reg)
	if !ok {
		writeError(w, http.StatusBadGateway, "read failed")
		return
	}
	writeJSON(w, http.StatusOK, readResponse{Key: key, Value: v})
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req writeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	reg, ok := s.findRegister(req.Key)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown register %q", req.Key))
		return
	}
	if !s.engine.WriteRegister(reg, req.Value) {
		writeError(w, http.StatusBadGateway, "write failed")
		return
	}
	writeOK(w)
}

func (s *Server) handleBit(w http.ResponseWriter, r *http.Request) {
	var req bitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	bit, ok := s.findBit(req.Key)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown bit %q", req.Key))
		return
	}
	if !s.engine.WriteBit(bit, req.On) {
		writeError(w, http.StatusBadGateway, "write failed")
		return
	}
	writeOK(w)
}

func (s *Server) handleInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IntervalMs <= 0 {
		writeError(w, http.StatusBadRequest, "interval_ms must be > 0")
		return
	}
	s.engine.SetInterval(time.Duration(req.IntervalMs) * time.Millisecond)
	s.log.Info("poll interval changed", zap.Int64("interval_ms", req.IntervalMs))
	writeOK(w)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.engine.Start()
	writeOK(w)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.engine.Stop() {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
		return
	}
	writeOK(w)
}

func (s *Server) findRegister(key string) (model.Register, bool) {
	for _, r := range s.engine.Registers() {
		if r.Designator() == key {
			return r.Definition(), true
		}
	}
	return model.Register{}, false
}

func (s *Server) findBit(key string) (model.Bit, bool) {
	for _, b := range s.engine.Bits() {
		if b.Designator() == key || (b.Name != "" && b.Name == key) {
			return b.Bit, true
		}
	}
	return model.Bit{}, false
}
