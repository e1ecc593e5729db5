package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leafsii/rediskit/pkg/kv"
	"github.com/leafsii/rediskit/pkg/lifetime"
	"github.com/leafsii/rediskit/pkg/partition"
	"github.com/leafsii/rediskit/pkg/rediskit"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	client *rediskit.Client
	logger *zap.SugaredLogger
}

func NewHandler(client *rediskit.Client, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{client: client, logger: logger}
}

// Health endpoints
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

// String endpoints
func (h *Handler) GetString(w http.ResponseWriter, r *http.Request) {
	db, ok := h.partition(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")

	value, err := rediskit.StringGet[any](r.Context(), h.client, key, db)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if value == nil {
		h.writeError(w, http.StatusNotFound, "KEY_NOT_FOUND", fmt.Sprintf("key %q not found in %s", key, db))
		return
	}

	h.writeJSON(w, http.StatusOK, StringValueDTO{Key: key, DB: db.Name(), Value: value})
}

func (h *Handler) PutString(w http.ResponseWriter, r *http.Request) {
	db, ok := h.partition(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")

	var req StringSetRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	value, err := decodeValue(req.Value)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_VALUE", err.Error())
		return
	}

	if req.Swap {
		previous, err := rediskit.StringSetAndGet[any](r.Context(), h.client, key, value, db)
		if err != nil {
			h.writeStoreError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, StringSetResponse{Written: true, Previous: previous})
		return
	}

	written, err := h.client.StringSet(r.Context(), key, value, db)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StringSetResponse{Written: written})
}

func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	db, ok := h.partition(w, r)
	if !ok {
		return
	}

	deleted, err := h.client.KeyDelete(r.Context(), chi.URLParam(r, "key"), db)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResultDTO{OK: deleted})
}

// Expiry endpoints
func (h *Handler) GetTTL(w http.ResponseWriter, r *http.Request) {
	db, ok := h.partition(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")

	exists, err := h.client.KeyExists(r.Context(), key, db)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if !exists {
		h.writeError(w, http.StatusNotFound, "KEY_NOT_FOUND", fmt.Sprintf("key %q not found in %s", key, db))
		return
	}

	ttl, err := h.client.KeyTimeToLive(r.Context(), key, db)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	at, err := h.client.KeyExpireTime(r.Context(), key, db)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	dto := TTLDTO{Key: key, DB: db.Name()}
	if ttl != nil {
		ms := ttl.Milliseconds()
		dto.TTLMillis = &ms
	}
	if at != nil {
		unix := at.Unix()
		dto.ExpiresAt = &unix
	}
	h.writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) PutTTL(w http.ResponseWriter, r *http.Request) {
	db, ok := h.partition(w, r)
	if !ok {
		return
	}

	var req ExpireRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	set, err := h.client.KeyExpire(r.Context(), chi.URLParam(r, "key"), time.Duration(req.TTLMillis)*time.Millisecond, db)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResultDTO{OK: set})
}

// Hash endpoints
func (h *Handler) GetHash(w http.ResponseWriter, r *http.Request) {
	db, ok := h.partition(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")

	fields, err := h.client.HashGetAll(r.Context(), key, db)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, HashDTO{Key: key, DB: db.Name(), Fields: fields, Length: int64(len(fields))})
}

func (h *Handler) PutHash(w http.ResponseWriter, r *http.Request) {
	db, ok := h.partition(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")

	var req HashSetRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if len(req.Fields) == 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "fields must not be empty")
		return
	}

	if err := h.client.HashSet(r.Context(), key, req.Fields, db); err != nil {
		h.writeStoreError(w, err)
		return
	}
	n, err := h.client.HashLength(r.Context(), key, db)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, HashDTO{Key: key, DB: db.Name(), Length: n})
}

// Set endpoints
func (h *Handler) GetSet(w http.ResponseWriter, r *http.Request) {
	db, ok := h.partition(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")

	members, err := h.client.SetMembers(r.Context(), key, db)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SetDTO{Key: key, DB: db.Name(), Members: members, Length: int64(len(members))})
}

func (h *Handler) AddSetMember(w http.ResponseWriter, r *http.Request) {
	db, ok := h.partition(w, r)
	if !ok {
		return
	}

	var req SetAddRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	member, err := decodeValue(req.Member)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_VALUE", err.Error())
		return
	}

	added, err := h.client.SetAdd(r.Context(), chi.URLParam(r, "key"), member, db)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResultDTO{OK: added})
}

func (h *Handler) PopSetMember(w http.ResponseWriter, r *http.Request) {
	db, ok := h.partition(w, r)
	if !ok {
		return
	}

	member, err := h.client.SetPop(r.Context(), chi.URLParam(r, "key"), db)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SetPopDTO{Member: member})
}

// Lifetime endpoints
func (h *Handler) GetLifetimes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.lifetimes())
}

func (h *Handler) PutLifetime(w http.ResponseWriter, r *http.Request) {
	db, ok := h.partition(w, r)
	if !ok {
		return
	}

	var req LifetimeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	d, err := lifetime.ParseLifetime(req.Lifetime)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_LIFETIME", err.Error())
		return
	}

	h.client.SetLifetime(db, d)
	h.logger.Infow("Lifetime updated", "db", db.Name(), "lifetime", req.Lifetime)
	h.writeJSON(w, http.StatusOK, h.lifetimes())
}

func (h *Handler) ResetLifetimes(w http.ResponseWriter, r *http.Request) {
	if err := h.client.ResetLifetimes(); err != nil {
		h.writeError(w, http.StatusInternalServerError, "LIFETIME_RESET_FAILED", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.lifetimes())
}

func (h *Handler) PutDefaultDB(w http.ResponseWriter, r *http.Request) {
	var req DefaultDBRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	db, err := partition.Parse(req.DB)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_DB", err.Error())
		return
	}
	if err := h.client.SetDefaultDB(db); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_DB", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.lifetimes())
}

func (h *Handler) lifetimes() LifetimesDTO {
	table := h.client.Lifetimes()
	dto := LifetimesDTO{DefaultDB: h.client.DefaultDB().Name()}
	for _, db := range partition.All() {
		i, _ := db.Index()
		d, ok := table[i]
		if !ok {
			continue
		}
		dto.Lifetimes = append(dto.Lifetimes, LifetimeDTO{DB: db.Name(), Lifetime: lifetime.FormatLifetime(d)})
	}
	return dto
}

// Utility methods
func (h *Handler) partition(w http.ResponseWriter, r *http.Request) (partition.DB, bool) {
	db, err := partition.Parse(chi.URLParam(r, "db"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_DB", err.Error())
		return partition.DB{}, false
	}
	return db, true
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return false
	}
	return true
}

// decodeValue keeps numbers exact so they are stored as sent.
func decodeValue(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, errors.New("value is required")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rediskit.ErrSerialization):
		h.writeError(w, http.StatusUnprocessableEntity, "SERIALIZATION_ERROR", err.Error())
	case errors.Is(err, kv.ErrWrongType):
		h.writeError(w, http.StatusConflict, "WRONG_TYPE", err.Error())
	case errors.Is(err, kv.ErrAdminDisabled):
		h.writeError(w, http.StatusForbidden, "ADMIN_DISABLED", err.Error())
	case errors.Is(err, rediskit.ErrConnectionUnavailable), errors.Is(err, rediskit.ErrStoreUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", err.Error())
	case errors.Is(err, rediskit.ErrUnknownPartition):
		h.writeError(w, http.StatusInternalServerError, "LIFETIME_MISSING", err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.logger.Errorw("API error", "code", code, "message", message, "status", status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := ErrorResponse{
		Code:    code,
		Message: message,
	}
	json.NewEncoder(w).Encode(err)
}
