// internal/server/server_test.go
package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tamzrod/modbus-monitor/internal/model"
	"github.com/tamzrod/modbus-monitor/internal/poller"
)

type memClient struct {
	mu  sync.Mutex
	mem map[model.Key]uint16
}

func (c *memClient) ReadHoldingRegisters(slave uint8, addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint16, qty)
	for i := range out {
		out[i] = c.mem[model.Key{Slave: slave, Address: addr + uint16(i)}]
	}
	return out, nil
}

func (c *memClient) WriteRegisters(slave uint8, addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range regs {
		c.mem[model.Key{Slave: slave, Address: addr + uint16(i)}] = v
	}
	return nil
}

func (c *memClient) IsConnected() bool { return true }

func (c *memClient) get(slave uint8, addr uint16) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mem[model.Key{Slave: slave, Address: addr}]
}

func setup(t *testing.T) (*Server, *poller.Engine, *memClient) {
	t.Helper()
	client := &memClient{mem: map[model.Key]uint16{
		{Slave: 1, Address: 0}: 42,
		{Slave: 1, Address: 1}: 0b0001,
	}}
	e, err := poller.New(poller.Config{}, client)
	if err != nil {
		t.Fatalf("poller.New err=%v", err)
	}
	e.SetRegisters([]model.Register{
		{Slave: 1, Address: 0, Size: 1, Scale: 0.5, Access: model.AccessReadWrite, Tier: model.TierFast},
		{Slave: 1, Address: 1, Size: 1, Scale: 1, Tier: model.TierFast},
	})
	e.SetBits([]model.Bit{{Name: "pump", Slave: 1, Address: 1, Index: 3}})
	e.PollOnce()

	s := New(e, nil)
	t.Cleanup(s.Close)
	return s, e, client
}

func do(t *testing.T, h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHistoryEndpoint(t *testing.T) {
	s, _, _ := setup(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/history?key=D1.R0&window=60", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body)
	}
	var resp historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Values) != 1 || resp.Values[0] != 21 {
		t.Fatalf("history=%+v", resp)
	}

	if rec := do(t, h, http.MethodGet, "/api/history", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing key code=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/history?key=D1.R0&window=soon", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad window code=%d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/history?key=nothing", "")
	if !strings.Contains(rec.Body.String(), `"values":[]`) {
		t.Fatalf("empty history should encode as []: %s", rec.Body)
	}
}

func TestWriteEndpoint(t *testing.T) {
	s, _, client := setup(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/write", `{"key":"D1.R0","value":50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body)
	}
	if got := client.get(1, 0); got != 100 {
		t.Fatalf("written raw=%d", got)
	}

	if rec := do(t, h, http.MethodPost, "/api/write", `{"key":"D1.R1","value":1}`); rec.Code != http.StatusBadGateway {
		t.Fatalf("read-only write code=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/write", `{"key":"D9.R9","value":1}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown register code=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/write", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET write code=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/write", `{"key":"D1.R0","val":1}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field code=%d", rec.Code)
	}
}

func TestBitEndpoint(t *testing.T) {
	s, _, client := setup(t)
	h := s.Handler()

	if rec := do(t, h, http.MethodPost, "/api/bit", `{"key":"pump","on":true}`); rec.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body)
	}
	if got := client.get(1, 1); got != 0b1001 {
		t.Fatalf("after set=%b", got)
	}
	if rec := do(t, h, http.MethodPost, "/api/bit", `{"key":"D1.R1.B3","on":false}`); rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	if got := client.get(1, 1); got != 0b0001 {
		t.Fatalf("after clear=%b", got)
	}
}

func TestReadAndStatsEndpoints(t *testing.T) {
	s, _, _ := setup(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/read?key=D1.R0", "")
	var rr readResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &rr); err != nil || rr.Value != 21 {
		t.Fatalf("read=%+v err=%v", rr, err)
	}

	rec = do(t, h, http.MethodGet, "/api/stats", "")
	var st statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil || st.PollCount != 1 {
		t.Fatalf("stats=%+v err=%v", st, err)
	}
}

func TestIntervalAndPollControl(t *testing.T) {
	s, e, _ := setup(t)
	h := s.Handler()

	if rec := do(t, h, http.MethodPost, "/api/interval", `{"interval_ms":250}`); rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	if e.Interval() != 250*time.Millisecond {
		t.Fatalf("interval=%v", e.Interval())
	}
	if rec := do(t, h, http.MethodPost, "/api/interval", `{"interval_ms":0}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("zero interval code=%d", rec.Code)
	}

	if rec := do(t, h, http.MethodPost, "/api/poll/start", ""); rec.Code != http.StatusOK {
		t.Fatalf("start code=%d", rec.Code)
	}
	if !e.IsRunning() {
		t.Fatalf("engine not started")
	}
	if rec := do(t, h, http.MethodPost, "/api/poll/stop", ""); rec.Code != http.StatusOK {
		t.Fatalf("stop code=%d", rec.Code)
	}
	if e.IsRunning() {
		t.Fatalf("engine not stopped")
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func TestWebSocketBroadcast(t *testing.T) {
	s, _, _ := setup(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readFrame(t, conn)
	if first.Type != "data" || first.Snapshot == nil || len(first.Snapshot.Registers) != 2 {
		t.Fatalf("initial frame=%+v", first)
	}
	if first.Snapshot.Registers[0].Value != 21 {
		t.Fatalf("register value=%v", first.Snapshot.Registers[0].Value)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.clientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	s.Error("Write error D1.R1: read-only")
	if f := readFrame(t, conn); f.Type != "error" || !strings.Contains(f.Message, "D1.R1") {
		t.Fatalf("error frame=%+v", f)
	}

	s.DataUpdated()
	if f := readFrame(t, conn); f.Type != "data" || f.Snapshot == nil {
		t.Fatalf("data frame=%+v", f)
	}

	s.ConnectionLost()
	if f := readFrame(t, conn); f.Type != "connection_lost" {
		t.Fatalf("lost frame=%+v", f)
	}
}
