// Package publicweb serves the REST interface of a wormcore node.
package publicweb

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wormhole-foundation/wormhole/core/pkg/core"
	"github.com/wormhole-foundation/wormhole/core/pkg/db"
	"github.com/wormhole-foundation/wormhole/core/pkg/guardianset"
	"github.com/wormhole-foundation/wormhole/core/pkg/replay"
	"github.com/wormhole-foundation/wormhole/core/pkg/tokenbridge"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

const MaxBodySize = 1024 * 1024

var errBadRequest = errors.New("bad request")

type Server struct {
	core        *core.Bridge
	tokenBridge *tokenbridge.Bridge
	logger      *zap.Logger
	limiter     *rate.Limiter
}

type Option func(*Server)

// WithRateLimit bounds the request rate of the whole API. Requests over the limit get 429.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *Server) {
		s.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithTokenBridge enables the token bridge governance route.
func WithTokenBridge(tb *tokenbridge.Bridge) Option {
	return func(s *Server) {
		s.tokenBridge = tb
	}
}

func NewServer(c *core.Bridge, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		core:    c,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the router with all middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID, s.logRequests, s.rateLimit)

	r.HandleFunc("/v1/vaa/verify", s.handleVerify).Methods(http.MethodPost)
	r.HandleFunc("/v1/vaa/submit", s.handleSubmit).Methods(http.MethodPost)
	if s.tokenBridge != nil {
		r.HandleFunc("/v1/tokenbridge/submit", s.handleTokenBridgeSubmit).Methods(http.MethodPost)
	}
	r.HandleFunc("/v1/messages", s.handlePostMessage).Methods(http.MethodPost)
	r.HandleFunc("/v1/guardianset/current", s.handleCurrentGuardianSet).Methods(http.MethodGet)
	r.HandleFunc("/v1/guardianset/{index:[0-9]+}", s.handleGuardianSet).Methods(http.MethodGet)
	r.HandleFunc("/v1/claims/{chain}/{emitter}/{sequence:[0-9]+}", s.handleClaim).Methods(http.MethodGet)
	r.HandleFunc("/v1/state", s.handleState).Methods(http.MethodGet)
	return r
}

func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  uint32 `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a registered error code to an HTTP status.
func statusFor(err error) (int, uint32) {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest, 0
	}
	if errors.Is(err, db.ErrNotFound) {
		return http.StatusNotFound, 0
	}
	if errors.Is(err, db.ErrConflict) {
		return http.StatusServiceUnavailable, 0
	}

	code, ok := vaa.Code(err)
	if !ok {
		return http.StatusInternalServerError, 0
	}
	switch {
	case errors.Is(err, vaa.ErrUnknownGuardianSet), errors.Is(err, vaa.ErrNotInitialized):
		return http.StatusNotFound, code
	case errors.Is(err, vaa.ErrAlreadyClaimed),
		errors.Is(err, vaa.ErrAlreadyInitialized),
		errors.Is(err, vaa.ErrChainAlreadyRegistered),
		errors.Is(err, vaa.ErrGuardianSetNotSequential):
		return http.StatusConflict, code
	case errors.Is(err, vaa.ErrFeeTooLow):
		return http.StatusPaymentRequired, code
	default:
		return http.StatusBadRequest, code
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("internal error serving request", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		msg = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func readBody(w http.ResponseWriter, r *http.Request) (gjson.Result, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		return gjson.Result{}, badRequest("failed to read body: %v", err)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, badRequest("body is not valid JSON")
	}
	return gjson.ParseBytes(body), nil
}

func decodeHex(field string, value gjson.Result) ([]byte, error) {
	if !value.Exists() {
		return nil, badRequest("missing field %q", field)
	}
	b, err := hex.DecodeString(strings.TrimPrefix(value.String(), "0x"))
	if err != nil {
		return nil, badRequest("field %q is not hex: %v", field, err)
	}
	return b, nil
}

// uintField reads an optional non-negative integer field. Absent fields are 0.
func uintField(body gjson.Result, field string, limit uint64) (uint64, error) {
	v := body.Get(field)
	if !v.Exists() {
		return 0, nil
	}
	if v.Type != gjson.Number {
		return 0, badRequest("%s must be a number", field)
	}
	n, err := strconv.ParseUint(v.Raw, 10, 64)
	if err != nil {
		return 0, badRequest("%s must be a non-negative integer, got %s", field, v.Raw)
	}
	if n > limit {
		return 0, badRequest("%s out of range: %d", field, n)
	}
	return n, nil
}

func (s *Server) readVAA(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := readBody(w, r)
	if err != nil {
		return nil, err
	}
	return decodeHex("vaa", body.Get("vaa"))
}

type vaaSummary struct {
	MessageID        string      `json:"messageId"`
	Digest           string      `json:"digest"`
	GuardianSetIndex uint32      `json:"guardianSetIndex"`
	Signatures       int         `json:"signatures"`
	Timestamp        int64       `json:"timestamp"`
	Nonce            uint32      `json:"nonce"`
	EmitterChain     vaa.ChainID `json:"emitterChain"`
	EmitterAddress   vaa.Address `json:"emitterAddress"`
	Sequence         uint64      `json:"sequence"`
	ConsistencyLevel uint8       `json:"consistencyLevel"`
	Payload          string      `json:"payload"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	data, err := s.readVAA(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.core.ParseAndVerifyVAA(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vaaSummary{
		MessageID:        v.MessageID(),
		Digest:           v.HexDigest(s.core.Config().DigestScheme),
		GuardianSetIndex: v.GuardianSetIndex,
		Signatures:       len(v.Signatures),
		Timestamp:        v.Timestamp.Unix(),
		Nonce:            v.Nonce,
		EmitterChain:     v.EmitterChain,
		EmitterAddress:   v.EmitterAddress,
		Sequence:         v.Sequence,
		ConsistencyLevel: v.ConsistencyLevel,
		Payload:          hex.EncodeToString(v.Payload),
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	data, err := s.readVAA(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.core.SubmitVAA(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleTokenBridgeSubmit(w http.ResponseWriter, r *http.Request) {
	data, err := s.readVAA(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.tokenBridge.SubmitGovernanceVAA(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	emitter, err := vaa.StringToAddress(body.Get("emitter").String())
	if err != nil {
		s.writeError(w, r, badRequest("invalid emitter: %v", err))
		return
	}
	payload, err := decodeHex("payload", body.Get("payload"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	nonce, err := uintField(body, "nonce", math.MaxUint32)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	consistency, err := uintField(body, "consistencyLevel", math.MaxUint8)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fee, err := uintField(body, "fee", math.MaxUint64)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	seq, err := s.core.PostMessage(r.Context(), core.Message{
		Emitter:          emitter,
		Nonce:            uint32(nonce),      // #nosec G115 -- checked above
		ConsistencyLevel: uint8(consistency), // #nosec G115 -- checked above
		Payload:          payload,
	}, fee)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"sequence": seq})
}

type guardianSetResponse struct {
	Index          uint32   `json:"index"`
	Keys           []string `json:"keys"`
	CreationTime   uint32   `json:"creationTime"`
	ExpirationTime uint32   `json:"expirationTime"`
	Quorum         int      `json:"quorum"`
}

func newGuardianSetResponse(gs *guardianset.GuardianSet) guardianSetResponse {
	keys := make([]string, len(gs.Keys))
	for i, k := range gs.Keys {
		keys[i] = k.Hex()
	}
	return guardianSetResponse{
		Index:          gs.Index,
		Keys:           keys,
		CreationTime:   gs.CreationTime,
		ExpirationTime: gs.ExpirationTime,
		Quorum:         gs.Quorum(),
	}
}

func (s *Server) handleCurrentGuardianSet(w http.ResponseWriter, r *http.Request) {
	gs, err := s.core.CurrentGuardianSet(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGuardianSetResponse(gs))
}

func (s *Server) handleGuardianSet(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(mux.Vars(r)["index"], 10, 32)
	if err != nil {
		s.writeError(w, r, badRequest("invalid guardian set index: %v", err))
		return
	}
	gs, err := s.core.GuardianSet(r.Context(), uint32(index))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGuardianSetResponse(gs))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key, err := replay.KeyFromString(vars["chain"] + "/" + vars["emitter"] + "/" + vars["sequence"])
	if err != nil {
		s.writeError(w, r, badRequest("%v", err))
		return
	}
	claimed, err := s.core.IsClaimed(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messageId": key.String(), "claimed": claimed})
}

type stateResponse struct {
	ChainID        vaa.ChainID  `json:"chainId"`
	MessageFee     uint64       `json:"messageFee"`
	CollectedFees  string       `json:"collectedFees"`
	PendingUpgrade *vaa.Address `json:"pendingUpgrade,omitempty"`
	GuardianSet    uint32       `json:"guardianSetIndex"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.core.State(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	gs, err := s.core.CurrentGuardianSet(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{
		ChainID:        state.ChainID,
		MessageFee:     state.MessageFee,
		CollectedFees:  state.CollectedFees.ToBig().String(),
		PendingUpgrade: state.PendingUpgrade,
		GuardianSet:    gs.Index,
	})
}
