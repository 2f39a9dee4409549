package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/nurburg-dev/redis-sample-project/internal/store"

	"go.uber.org/zap"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

type errorResponse struct {
	Error string `json:"error"`
}

type recordResponse struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type setRequest struct {
	Key   *string         `json:"key"`
	Value json.RawMessage `json:"value"`
}

type healthResponse struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Redis     *healthRedis `json:"redis,omitempty"`
	Error     string       `json:"error,omitempty"`
}

type healthRedis struct {
	URL  string `json:"url"`
	Ping string `json:"ping"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(timestampLayout)

	reply, err := s.store.Ping(r.Context())
	if err != nil {
		s.logger.Error("Health check failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, healthResponse{
			Status:    "ERROR",
			Timestamp: now,
			Error:     "Redis connection failed",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Timestamp: now,
		Redis: &healthRedis{
			URL:  s.config.RedactedStoreURL(),
			Ping: reply,
		},
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	value, err := s.store.Get(r.Context(), key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "Key not found"})
		return
	case err != nil:
		s.logger.Error("Failed to get key", zap.String("key", key), zap.Error(err))
		s.writeJSON(w, storeErrorStatus(err), errorResponse{Error: "Failed to get key"})
		return
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to get key"})
		return
	}
	s.writeJSON(w, http.StatusOK, recordResponse{Key: key, Value: encoded})
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)

	var req setRequest
	if err := decodeBody(r.Body, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
			return
		}
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
		return
	}

	if req.Key == nil || *req.Key == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Key and value are required"})
		return
	}
	value, ok := scalarValue(req.Value)
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Key and value are required"})
		return
	}

	if err := s.store.Set(r.Context(), *req.Key, value); err != nil {
		s.logger.Error("Failed to set key", zap.String("key", *req.Key), zap.Error(err))
		s.writeJSON(w, storeErrorStatus(err), errorResponse{Error: "Failed to set key"})
		return
	}

	s.writeJSON(w, http.StatusCreated, recordResponse{Key: *req.Key, Value: bytes.TrimSpace(req.Value)})
}

// scalarValue converts a present JSON scalar into its stored form. Strings
// are stored unquoted, numbers and booleans as their JSON text. Absent,
// null, object and array values are rejected.
func scalarValue(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case 'n', '{', '[':
		return "", false
	default:
		return string(raw), true
	}
}

// decodeBody decodes exactly one JSON value from body. Anything but
// whitespace after it is an error.
func decodeBody(body io.Reader, v any) error {
	decoder := json.NewDecoder(body)
	if err := decoder.Decode(v); err != nil {
		return err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func storeErrorStatus(err error) int {
	if errors.Is(err, store.ErrTimeout) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
