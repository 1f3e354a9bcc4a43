package agentd

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mscrnt/spdtool/internal/history"
	"github.com/mscrnt/spdtool/internal/programmer"
)

var (
	errInvalidAddr  = errors.New("agentd: invalid address")
	errInvalidState = errors.New("agentd: invalid state, want enable/disable/query")
)

// scanResponse reports which I2C addresses 0x50..0x57 ACKed a probe.
type scanResponse struct {
	Addresses []string `json:"addresses"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	mask, err := s.session.ScanBus()
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := scanResponse{}
	for i := 0; i < 8; i++ {
		if mask&(1<<uint(i)) != 0 {
			resp.Addresses = append(resp.Addresses, byteToHex(byte(0x50+i)))
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type readResponse struct {
	DataHex string `json:"data_hex"`
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	addr, offset, length, err := parseAddrOffsetLength(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	data, err := s.session.Read(addr, offset, length)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.recordEvent(history.EventRead, addr, "read %d bytes at offset %d", length, offset)
	s.writeJSON(w, http.StatusOK, readResponse{DataHex: hex.EncodeToString(data)})
}

type writeRequest struct {
	Addr   string `json:"addr"`
	Offset uint16 `json:"offset"`
	Value  byte   `json:"value"`
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, err)
		return
	}
	addr, err := parseHexByte(req.Addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.session.Write(addr, req.Offset, req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	s.recordEvent(history.EventWrite, addr, "wrote 0x%02X at offset %d", req.Value, req.Offset)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type rswpRequest struct {
	Block int    `json:"block"`
	State string `json:"state"` // "enable", "disable", or "query"
}

type rswpResponse struct {
	State string `json:"state"`
}

func (s *Server) handleRswp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req rswpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, err)
		return
	}
	state, err := parseRswpState(req.State)
	if err != nil {
		s.writeError(w, err)
		return
	}
	got, err := s.session.RSWP(req.Block, state)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.recordEvent(history.EventRswp, 0, "rswp block %d -> %s", req.Block, req.State)
	s.writeJSON(w, http.StatusOK, rswpResponse{State: rswpStateString(got)})
}

type pswpRequest struct {
	Addr  string `json:"addr"`
	State string `json:"state"` // "enable" or "query" only
}

func (s *Server) handlePswp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req pswpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, err)
		return
	}
	addr, err := parseHexByte(req.Addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	state, err := parseRswpState(req.State)
	if err != nil {
		s.writeError(w, err)
		return
	}
	got, err := s.session.PSWP(addr, state)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.recordEvent(history.EventPswp, addr, "pswp -> %s", req.State)
	s.writeJSON(w, http.StatusOK, rswpResponse{State: rswpStateString(got)})
}

func (s *Server) recordEvent(kind history.EventKind, addr byte, format string, args ...interface{}) {
	if s.history == nil {
		return
	}
	ev := &history.Event{
		Programmer: s.sessionTag,
		Address:    addr,
		Kind:       kind,
		Detail:     fmt.Sprintf(format, args...),
		CreatedAt:  time.Now(),
	}
	if err := s.history.RecordEvent(ev); err != nil {
		s.logger.Printf("record event: %v", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.logger.Printf("request error: %v", err)
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func parseAddrOffsetLength(r *http.Request) (byte, uint16, int, error) {
	q := r.URL.Query()
	addr, err := parseHexByte(q.Get("addr"))
	if err != nil {
		return 0, 0, 0, err
	}
	offset64, err := strconv.ParseUint(q.Get("offset"), 10, 16)
	if err != nil {
		return 0, 0, 0, err
	}
	length, err := strconv.Atoi(q.Get("length"))
	if err != nil {
		return 0, 0, 0, err
	}
	return addr, uint16(offset64), length, nil
}

func parseHexByte(s string) (byte, error) {
	b, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil || len(b) != 1 {
		return 0, errInvalidAddr
	}
	return b[0], nil
}

func trimHexPrefix(s string) string {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func byteToHex(b byte) string {
	return "0x" + hex.EncodeToString([]byte{b})
}

func parseRswpState(s string) (programmer.RswpState, error) {
	switch s {
	case "enable":
		return programmer.RswpEnable, nil
	case "disable":
		return programmer.RswpDisable, nil
	case "query":
		return programmer.RswpQuery, nil
	default:
		return 0, errInvalidState
	}
}

func rswpStateString(s programmer.RswpState) string {
	switch s {
	case programmer.RswpEnable:
		return "enabled"
	case programmer.RswpDisable:
		return "disabled"
	default:
		return "unknown"
	}
}
