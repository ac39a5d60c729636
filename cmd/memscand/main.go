package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/coldtrace/memscan/internal/corelog"
	"github.com/coldtrace/memscan/internal/resilience"
	"github.com/coldtrace/memscan/internal/telemetry"
	"github.com/coldtrace/memscan/scanner"
)

// registry holds every live Scanner, keyed by the id the create endpoint
// handed back. Scanners are only ever removed by process exit — this
// service has no DELETE endpoint, matching "persisted state: none" (§6):
// nothing outlives the process, but nothing needs explicit teardown either.
type registry struct {
	mu       sync.RWMutex
	scanners map[uuid.UUID]*scanner.Scanner
}

func newRegistry() *registry {
	return &registry{scanners: make(map[uuid.UUID]*scanner.Scanner)}
}

func (r *registry) put(s *scanner.Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanners[s.ID()] = s
}

func (r *registry) get(id uuid.UUID) (*scanner.Scanner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scanners[id]
	return s, ok
}

func dataTypeFromString(s string) (scanner.DataType, error) {
	switch strings.ToLower(s) {
	case "byte":
		return scanner.Byte, nil
	case "int":
		return scanner.Int, nil
	case "float":
		return scanner.Float, nil
	case "double":
		return scanner.Double, nil
	case "bool":
		return scanner.Bool, nil
	case "string":
		return scanner.String, nil
	case "byte_array":
		return scanner.ByteArray, nil
	case "struct":
		return scanner.Struct, nil
	default:
		return 0, fmt.Errorf("unknown data_type %q", s)
	}
}

func scanOpFromString(s string) (scanner.ScanOp, error) {
	switch strings.ToLower(s) {
	case "exact":
		return scanner.Exact, nil
	case "not":
		return scanner.Not, nil
	case "increased":
		return scanner.Increased, nil
	case "decreased":
		return scanner.Decreased, nil
	case "changed":
		return scanner.Changed, nil
	case "unchanged":
		return scanner.Unchanged, nil
	default:
		return 0, fmt.Errorf("unknown op %q", s)
	}
}

// decodeTarget turns a scan request's raw target field into a ScanValue,
// per dt's marshalling rules (§6). String/ByteArray/Struct scanners carry
// their target via the sequence/struct-pattern setup endpoints instead, so
// their ScanValue is always the zero value here.
func decodeTarget(dt scanner.DataType, raw json.RawMessage) (scanner.ScanValue, error) {
	if !dt.IsScalar() {
		return scanner.ScanValue{}, nil
	}
	switch dt {
	case scanner.Byte:
		var v uint8
		if err := json.Unmarshal(raw, &v); err != nil {
			return scanner.ScanValue{}, err
		}
		return scanner.ByteValue(v), nil
	case scanner.Int:
		var v int32
		if err := json.Unmarshal(raw, &v); err != nil {
			return scanner.ScanValue{}, err
		}
		return scanner.IntValue(v), nil
	case scanner.Float:
		var v float32
		if err := json.Unmarshal(raw, &v); err != nil {
			return scanner.ScanValue{}, err
		}
		return scanner.FloatValue(v), nil
	case scanner.Double:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return scanner.ScanValue{}, err
		}
		return scanner.DoubleValue(v), nil
	case scanner.Bool:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return scanner.ScanValue{}, err
		}
		return scanner.BoolValue(v), nil
	default:
		return scanner.ScanValue{}, fmt.Errorf("%s has no scalar target", dt)
	}
}

type server struct {
	reg         *registry
	scanLimiter *resilience.RateLimiter

	// Process-wide scanner defaults, read once at startup from
	// MEMSCAND_MAX_RESULTS/MEMSCAND_ALIGNMENT/MEMSCAND_CHECK_TIMING.
	// A create request's own fields, when set, always win.
	defaultMaxResults  int
	defaultAlignment   int
	defaultCheckTiming bool
}

type createScannerRequest struct {
	DataType    string `json:"data_type"`
	MaxResults  int    `json:"max_results"`
	Alignment   int    `json:"alignment"`
	CheckTiming *bool  `json:"check_timing"`
}

func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createScannerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dt, err := dataTypeFromString(req.DataType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.MaxResults <= 0 {
		req.MaxResults = s.defaultMaxResults
	}
	if req.Alignment <= 0 {
		req.Alignment = s.defaultAlignment
	}
	checkTiming := s.defaultCheckTiming
	if req.CheckTiming != nil {
		checkTiming = *req.CheckTiming
	}
	sc, err := scanner.New(dt, req.MaxResults, req.Alignment, checkTiming)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.reg.put(sc)
	writeJSON(w, http.StatusCreated, map[string]any{"id": sc.ID().String()})
}

func (s *server) lookup(w http.ResponseWriter, r *http.Request) (*scanner.Scanner, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid scanner id", http.StatusBadRequest)
		return nil, false
	}
	sc, ok := s.reg.get(id)
	if !ok {
		http.Error(w, "scanner not found", http.StatusNotFound)
		return nil, false
	}
	return sc, true
}

type sequenceRequest struct {
	BytesB64 string `json:"bytes_base64"`
}

func (s *server) handleSequence(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req sequenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b, err := base64.StdEncoding.DecodeString(req.BytesB64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sc.SetSearchSequence(&scanner.SearchSequence{Bytes: b})
	w.WriteHeader(http.StatusNoContent)
}

type structFieldRequest struct {
	OffsetFromKey int32  `json:"offset_from_key"`
	DataType      string `json:"data_type,omitempty"`
	Value         any    `json:"value,omitempty"`
	BytesB64      string `json:"bytes_base64,omitempty"`
}

type structPatternRequest struct {
	SearchKey         byte                 `json:"search_key"`
	KeyOffsetFromBase int32                `json:"key_offset_from_base"`
	BasicFields       []structFieldRequest `json:"basic_fields"`
	SequenceFields    []structFieldRequest `json:"sequence_fields"`
}

func (s *server) handleStructPattern(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req structPatternRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pattern := scanner.NewStructPattern(req.SearchKey, req.KeyOffsetFromBase)
	for _, f := range req.BasicFields {
		dt, err := dataTypeFromString(f.DataType)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		raw, err := json.Marshal(f.Value)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		value, err := decodeTarget(dt, raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pattern.AddBasicField(f.OffsetFromKey, dt, value)
	}
	for _, f := range req.SequenceFields {
		b, err := base64.StdEncoding.DecodeString(f.BytesB64)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pattern.AddSequenceField(f.OffsetFromKey, b)
	}
	sc.SetStructPattern(pattern)
	w.WriteHeader(http.StatusNoContent)
}

type scanRequest struct {
	Op     string          `json:"op"`
	Target json.RawMessage `json:"target"`
}

func (s *server) handleFirstScan(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if !s.scanLimiter.Allow() {
		http.Error(w, "scan rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	op, err := scanOpFromString(req.Op)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	target, err := decodeTarget(sc.DataType(), req.Target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	count, saturated := sc.FirstScan(r.Context(), op, target)
	writeJSON(w, http.StatusOK, map[string]any{"result_count": count, "max_results_reached": saturated})
}

func (s *server) handleRescan(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if !s.scanLimiter.Allow() {
		http.Error(w, "scan rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	op, err := scanOpFromString(req.Op)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	target, err := decodeTarget(sc.DataType(), req.Target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	count := sc.Rescan(r.Context(), op, target)
	writeJSON(w, http.StatusOK, map[string]any{"result_count": count})
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sc.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// resultDTO renders a scanner.Result for JSON, since ScanValue's fields are
// unexported and carry no type tag of their own — rendering the right union
// member requires the scanner's own DataType, which only the Facade knows.
type resultDTO struct {
	Address     uint64 `json:"address"`
	Value       any    `json:"value,omitempty"`
	OldValue    any    `json:"old_value,omitempty"`
	HasOld      bool   `json:"has_old,omitempty"`
	BytesBase64 string `json:"bytes_base64,omitempty"`
}

// scanValueToJSON renders v according to dt's scalar member; sequence and
// struct results never populate Value/OldValue (§3), so dt is always one of
// the scalar cases here.
func scanValueToJSON(dt scanner.DataType, v scanner.ScanValue) any {
	switch dt {
	case scanner.Byte:
		return v.AsByte()
	case scanner.Int:
		return v.AsInt()
	case scanner.Float:
		return v.AsFloat()
	case scanner.Double:
		return v.AsDouble()
	case scanner.Bool:
		return v.AsBool()
	default:
		return nil
	}
}

func resultToDTO(dt scanner.DataType, r scanner.Result) resultDTO {
	dto := resultDTO{Address: r.Address, HasOld: r.HasOld}
	if dt.IsScalar() {
		dto.Value = scanValueToJSON(dt, r.Value)
		if r.HasOld {
			dto.OldValue = scanValueToJSON(dt, r.OldValue)
		}
	}
	if len(r.Bytes) > 0 {
		dto.BytesBase64 = base64.StdEncoding.EncodeToString(r.Bytes)
	}
	return dto
}

func (s *server) handleResults(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	readValues, _ := strconv.ParseBool(r.URL.Query().Get("read_values"))

	results, err := sc.Results(offset, limit, readValues)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dtos := make([]resultDTO, len(results))
	for i, res := range results {
		dtos[i] = resultToDTO(sc.DataType(), res)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":       dtos,
		"total_count":   sc.ResultCount(),
		"offset":        offset,
		"limit":         limit,
		"errors":        sc.Errors(),
		"invalid_count": sc.InvalidCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring malformed env var", "name", name, "value", v)
		return fallback
	}
	return n
}

func envBool(name string, fallback bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring malformed env var", "name", name, "value", v)
		return fallback
	}
	return b
}

func main() {
	service := "memscand"
	corelog.Init(service)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTrace := telemetry.InitTracer(ctx, service)
	shutdownMetrics, _, _ := telemetry.InitMetrics(ctx, service)

	s := &server{
		reg:                newRegistry(),
		scanLimiter:        resilience.NewRateLimiter(20, 5, 10*time.Second, 50),
		defaultMaxResults:  envInt("MEMSCAND_MAX_RESULTS", 0),
		defaultAlignment:   envInt("MEMSCAND_ALIGNMENT", 0),
		defaultCheckTiming: envBool("MEMSCAND_CHECK_TIMING", false),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /v1/scanners", s.handleCreate)
	mux.HandleFunc("POST /v1/scanners/{id}/sequence", s.handleSequence)
	mux.HandleFunc("POST /v1/scanners/{id}/struct-pattern", s.handleStructPattern)
	mux.HandleFunc("POST /v1/scanners/{id}/first-scan", s.handleFirstScan)
	mux.HandleFunc("POST /v1/scanners/{id}/rescan", s.handleRescan)
	mux.HandleFunc("POST /v1/scanners/{id}/reset", s.handleReset)
	mux.HandleFunc("GET /v1/scanners/{id}/results", s.handleResults)

	addr := os.Getenv("MEMSCAND_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	slog.Info("memscand started", "addr", addr)
	<-ctx.Done()
	slog.Info("shutdown initiated")
	ctxSd, c2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer c2()
	_ = srv.Shutdown(ctxSd)
	telemetry.Flush(ctxSd, shutdownTrace)
	_ = shutdownMetrics(ctxSd)
	slog.Info("shutdown complete")
}
