package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dbehnke/rf-nexus/pkg/database"
	"github.com/dbehnke/rf-nexus/pkg/gateway"
	"github.com/dbehnke/rf-nexus/pkg/logger"
	"github.com/dbehnke/rf-nexus/pkg/metrics"
	"github.com/dbehnke/rf-nexus/pkg/protocols"
	"github.com/dbehnke/rf-nexus/pkg/pulse"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
	maxBodyBytes        = 64 << 10
)

// History is the read side of the code history
type History interface {
	GetRecent(limit int) ([]database.CodeRecord, error)
	GetByProtocol(protocol string, limit int) ([]database.CodeRecord, error)
	Count() (int64, error)
}

// API handles REST API endpoints
type API struct {
	gateway      *gateway.Gateway
	history      History
	historyLimit int
	collector    *metrics.Collector
	logger       *logger.Logger
	started      time.Time
}

// NewAPI creates a new API instance
func NewAPI(gw *gateway.Gateway, log *logger.Logger) *API {
	return &API{
		gateway:      gw,
		historyLimit: defaultHistoryLimit,
		logger:       log,
		started:      time.Now(),
	}
}

// ProtocolInfo describes one enabled protocol
type ProtocolInfo struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Kind        string  `json:"kind"`
	Pulses      int     `json:"pulses"`
	Bits        int     `json:"bits"`
	Tolerance   float64 `json:"tolerance"`
	StrictBits  bool    `json:"strict_bits"`
}

// DecodeRequest is the body of POST /api/decode
type DecodeRequest struct {
	Protocol string `json:"protocol"`
	Pulses   []int  `json:"pulses"`
}

// DecodeResponse reports a match with its message or the reason for a miss
type DecodeResponse struct {
	Protocol string             `json:"protocol"`
	Matched  bool               `json:"matched"`
	Message  *protocols.Message `json:"message,omitempty"`
	Reason   string             `json:"reason,omitempty"`
	Detail   string             `json:"detail,omitempty"`
}

// EncodeRequest is the body of POST /api/encode
type EncodeRequest struct {
	Protocol string            `json:"protocol"`
	Request  protocols.Request `json:"request"`
}

// EncodeResponse carries the built train
type EncodeResponse struct {
	Protocol string            `json:"protocol"`
	Pulses   []int             `json:"pulses"`
	Message  protocols.Message `json:"message"`
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	build := GetVersionInfo()
	response := map[string]interface{}{
		"status":         "running",
		"service":        "rf-nexus",
		"version":        build.Version,
		"commit":         build.Commit,
		"build_time":     build.BuildTime,
		"uptime_seconds": int64(time.Since(a.started).Seconds()),
		"protocols":      a.protocolNames(),
	}
	if a.history != nil {
		if n, err := a.history.Count(); err == nil {
			response["records"] = n
		} else {
			a.logger.Warn("Failed to count code records", logger.Error(err))
		}
	}
	if a.collector != nil {
		attempts, matches, encodes := a.collector.GetTotals()
		response["decode_attempts"] = attempts
		response["decode_matches"] = matches
		response["encodes"] = encodes
		response["live_clients"] = a.collector.GetActiveClients()
	}

	a.writeJSON(w, http.StatusOK, response)
}

// HandleProtocols handles the /api/protocols endpoint
func (a *API) HandleProtocols(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	infos := []ProtocolInfo{}
	for _, p := range a.gateway.Protocols() {
		def := p.Definition()
		kind := "field_layout"
		if _, ok := def.Strategy.(*pulse.PatternTable); ok {
			kind = "pattern_table"
		}
		infos = append(infos, ProtocolInfo{
			Name:        p.Name(),
			Description: p.Description(),
			Kind:        kind,
			Pulses:      def.Length,
			Bits:        def.BinaryLength(),
			Tolerance:   def.Epsilon,
			StrictBits:  def.StrictBits,
		})
	}
	a.writeJSON(w, http.StatusOK, infos)
}

// HandleDecode handles POST /api/decode
func (a *API) HandleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DecodeRequest
	if !a.readJSON(w, r, &req) {
		return
	}
	if len(req.Pulses) == 0 {
		a.writeError(w, http.StatusBadRequest, ErrorResponse{Error: "pulses are required", Field: "pulses"})
		return
	}

	res, err := a.gateway.Decode(req.Protocol, req.Pulses)
	if err != nil {
		a.writeGatewayError(w, err)
		return
	}

	out := DecodeResponse{Protocol: req.Protocol, Matched: res.Matched}
	if res.Matched {
		msg := res.Message
		out.Message = &msg
	} else {
		out.Reason = pulse.Reason(res.Reason)
		out.Detail = res.Reason.Error()
	}
	a.writeJSON(w, http.StatusOK, out)
}

// HandleEncode handles POST /api/encode
func (a *API) HandleEncode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req EncodeRequest
	if !a.readJSON(w, r, &req) {
		return
	}

	t, msg, err := a.gateway.Encode(req.Protocol, req.Request)
	if err != nil {
		a.writeGatewayError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, EncodeResponse{Protocol: req.Protocol, Pulses: t, Message: msg})
}

// HandleHistory handles GET /api/history?protocol=&limit=
func (a *API) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.history == nil {
		a.writeError(w, http.StatusServiceUnavailable, ErrorResponse{Error: "history is disabled"})
		return
	}

	limit := a.historyLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			a.writeError(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer", Field: "limit"})
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var (
		records []database.CodeRecord
		err     error
	)
	if name := r.URL.Query().Get("protocol"); name != "" {
		records, err = a.history.GetByProtocol(name, limit)
	} else {
		records, err = a.history.GetRecent(limit)
	}
	if err != nil {
		a.logger.Error("Failed to read code history", logger.Error(err))
		a.writeError(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to read history"})
		return
	}
	if records == nil {
		records = []database.CodeRecord{}
	}
	a.writeJSON(w, http.StatusOK, records)
}

func (a *API) protocolNames() []string {
	ps := a.gateway.Protocols()
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name()
	}
	return names
}

func (a *API) readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		a.writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// writeGatewayError maps gateway errors onto HTTP statuses
func (a *API) writeGatewayError(w http.ResponseWriter, err error) {
	var reqErr *pulse.RequestError
	switch {
	case errors.Is(err, gateway.ErrProtocolNotEnabled):
		a.writeError(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.As(err, &reqErr):
		a.writeError(w, http.StatusBadRequest, ErrorResponse{
			Error:  err.Error(),
			Field:  reqErr.Field,
			Reason: pulse.Reason(err),
		})
	default:
		a.logger.Error("Gateway call failed", logger.Error(err))
		a.writeError(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, body ErrorResponse) {
	a.writeJSON(w, status, body)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to encode response", logger.Error(err))
	}
}
