package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coldtrace/memscan/internal/resilience"
)

func newTestServer() *server {
	return &server{
		reg:         newRegistry(),
		scanLimiter: resilience.NewRateLimiter(100, 100, time.Minute, 1000),
	}
}

func TestDataTypeFromStringRoundTrip(t *testing.T) {
	for _, name := range []string{"byte", "int", "float", "double", "bool", "string", "byte_array", "struct"} {
		if _, err := dataTypeFromString(name); err != nil {
			t.Errorf("dataTypeFromString(%q) returned error: %v", name, err)
		}
	}
	if _, err := dataTypeFromString("nonsense"); err == nil {
		t.Error("expected an error for an unknown data_type")
	}
}

func TestScanOpFromStringRoundTrip(t *testing.T) {
	for _, name := range []string{"exact", "not", "increased", "decreased", "changed", "unchanged"} {
		if _, err := scanOpFromString(name); err != nil {
			t.Errorf("scanOpFromString(%q) returned error: %v", name, err)
		}
	}
	if _, err := scanOpFromString("nonsense"); err == nil {
		t.Error("expected an error for an unknown op")
	}
}

func TestHandleCreateThenLookupRoundTrip(t *testing.T) {
	s := newTestServer()

	body := bytes.NewBufferString(`{"data_type":"int","max_results":100,"alignment":4}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/scanners", body)
	rw := httptest.NewRecorder()
	s.handleCreate(rw, req)

	if rw.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body=%s", rw.Code, http.StatusCreated, rw.Body.String())
	}
	var resp struct{ ID string }
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("expected a non-empty scanner id")
	}

	getReq := httptest.NewRequest(http.MethodGet, "/v1/scanners/"+resp.ID+"/results", nil)
	getReq.SetPathValue("id", resp.ID)
	getRw := httptest.NewRecorder()
	s.handleResults(getRw, getReq)
	if getRw.Code != http.StatusOK {
		t.Fatalf("results status = %d, want %d; body=%s", getRw.Code, http.StatusOK, getRw.Body.String())
	}
}

// TestHandleResultsRendersScalarValueNotEmptyObject guards against the
// results endpoint silently defeating itself by encoding ScanValue's
// unexported fields as "{}" regardless of the actual scanned value. It runs
// a real, bounded first-scan for a distinctive int value held by a local
// variable, the same way facade_test.go exercises live process memory, and
// checks the endpoint's JSON actually carries that value rather than an
// empty object.
func TestHandleResultsRendersScalarValueNotEmptyObject(t *testing.T) {
	marker := int32(0x1357ACE1)
	s := newTestServer()

	createBody := bytes.NewBufferString(`{"data_type":"int","max_results":5}`)
	createReq := httptest.NewRequest(http.MethodPost, "/v1/scanners", createBody)
	createRw := httptest.NewRecorder()
	s.handleCreate(createRw, createReq)
	var created struct{ ID string }
	if err := json.Unmarshal(createRw.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal create response: %v", err)
	}

	scanBody := bytes.NewBufferString(`{"op":"exact","target":` + strconv.Itoa(int(marker)) + `}`)
	scanReq := httptest.NewRequest(http.MethodPost, "/v1/scanners/"+created.ID+"/first-scan", scanBody)
	scanReq.SetPathValue("id", created.ID)
	scanRw := httptest.NewRecorder()
	s.handleFirstScan(scanRw, scanReq)
	runtime.KeepAlive(marker)
	if scanRw.Code != http.StatusOK {
		t.Fatalf("first-scan status = %d, want %d; body=%s", scanRw.Code, http.StatusOK, scanRw.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/v1/scanners/"+created.ID+"/results", nil)
	getReq.SetPathValue("id", created.ID)
	getRw := httptest.NewRecorder()
	s.handleResults(getRw, getReq)
	runtime.KeepAlive(marker)
	if getRw.Code != http.StatusOK {
		t.Fatalf("results status = %d, want %d; body=%s", getRw.Code, http.StatusOK, getRw.Body.String())
	}

	var resp struct {
		Results []struct {
			Address uint64   `json:"address"`
			Value   *float64 `json:"value"`
		} `json:"results"`
	}
	if err := json.Unmarshal(getRw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal results response: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected at least one result matching the marker value")
	}
	for _, r := range resp.Results {
		if r.Value == nil {
			t.Fatalf("result %+v rendered no value, want %d", r, marker)
		}
		if int32(*r.Value) != marker {
			t.Errorf("rendered value = %v, want %d", *r.Value, marker)
		}
	}
}

func TestDataTypeAndScanOpFromStringAreCaseInsensitive(t *testing.T) {
	lower, errLower := dataTypeFromString("int")
	mixed, errMixed := dataTypeFromString("INT")
	if errLower != nil || errMixed != nil || lower != mixed {
		t.Errorf("dataTypeFromString case mismatch: lower=%v/%v mixed=%v/%v", lower, errLower, mixed, errMixed)
	}

	opLower, errOpLower := scanOpFromString("exact")
	opMixed, errOpMixed := scanOpFromString("Exact")
	if errOpLower != nil || errOpMixed != nil || opLower != opMixed {
		t.Errorf("scanOpFromString case mismatch: lower=%v/%v mixed=%v/%v", opLower, errOpLower, opMixed, errOpMixed)
	}
}

func TestHandleCreateFallsBackToServerDefaults(t *testing.T) {
	s := newTestServer()
	s.defaultMaxResults = 42
	s.defaultAlignment = 8

	body := bytes.NewBufferString(`{"data_type":"double"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/scanners", body)
	rw := httptest.NewRecorder()
	s.handleCreate(rw, req)

	if rw.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body=%s", rw.Code, http.StatusCreated, rw.Body.String())
	}
	var resp struct{ ID string }
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	id, err := uuid.Parse(resp.ID)
	if err != nil {
		t.Fatalf("parse id: %v", err)
	}
	sc, ok := s.reg.get(id)
	if !ok {
		t.Fatal("expected the created scanner to be registered")
	}
	if sc.DataType().String() != "double" {
		t.Errorf("DataType() = %s, want double", sc.DataType())
	}
}

func TestEnvIntAndEnvBoolFallBackOnMissingOrMalformedValues(t *testing.T) {
	t.Setenv("MEMSCAND_TEST_INT", "")
	if got := envInt("MEMSCAND_TEST_INT", 7); got != 7 {
		t.Errorf("envInt with unset var = %d, want fallback 7", got)
	}
	t.Setenv("MEMSCAND_TEST_INT", "not-a-number")
	if got := envInt("MEMSCAND_TEST_INT", 7); got != 7 {
		t.Errorf("envInt with malformed var = %d, want fallback 7", got)
	}
	t.Setenv("MEMSCAND_TEST_INT", "16")
	if got := envInt("MEMSCAND_TEST_INT", 7); got != 16 {
		t.Errorf("envInt with set var = %d, want 16", got)
	}

	t.Setenv("MEMSCAND_TEST_BOOL", "")
	if got := envBool("MEMSCAND_TEST_BOOL", false); got != false {
		t.Errorf("envBool with unset var = %v, want fallback false", got)
	}
	t.Setenv("MEMSCAND_TEST_BOOL", "true")
	if got := envBool("MEMSCAND_TEST_BOOL", false); got != true {
		t.Errorf("envBool with set var = %v, want true", got)
	}
}

func TestHandleCreateRejectsUnknownDataType(t *testing.T) {
	s := newTestServer()
	body := bytes.NewBufferString(`{"data_type":"nonsense","max_results":10}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/scanners", body)
	rw := httptest.NewRecorder()
	s.handleCreate(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rw.Code, http.StatusBadRequest)
	}
}

func TestHandleResultsForUnknownIDReturnsNotFound(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/scanners/"+zeroUUID+"/results", nil)
	req.SetPathValue("id", zeroUUID)
	rw := httptest.NewRecorder()
	s.handleResults(rw, req)
	if rw.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rw.Code, http.StatusNotFound)
	}
}

const zeroUUID = "00000000-0000-0000-0000-000000000000"

func TestHandleFirstScanRejectsWhenRateLimited(t *testing.T) {
	s := newTestServer()
	s.scanLimiter = resilience.NewRateLimiter(0, 0, time.Minute, 0)

	createBody := bytes.NewBufferString(`{"data_type":"byte","max_results":10}`)
	createReq := httptest.NewRequest(http.MethodPost, "/v1/scanners", createBody)
	createRw := httptest.NewRecorder()
	s.handleCreate(createRw, createReq)
	var created struct{ ID string }
	_ = json.Unmarshal(createRw.Body.Bytes(), &created)

	scanBody := bytes.NewBufferString(`{"op":"exact","target":1}`)
	scanReq := httptest.NewRequest(http.MethodPost, "/v1/scanners/"+created.ID+"/first-scan", scanBody)
	scanReq.SetPathValue("id", created.ID)
	scanRw := httptest.NewRecorder()
	s.handleFirstScan(scanRw, scanReq)

	if scanRw.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", scanRw.Code, http.StatusTooManyRequests)
	}
}
