package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/MSSkowron/MicroURL/pkg/logger"
)

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		requestBody, err := getRequestBody(r)
		if err != nil {
			s.respondWithError(w, http.StatusInternalServerError, ErrMsgInternalServerError)
			return
		}

		logger.Info("Received request",
			"id", requestID,
			"client_ip", getClientIP(r),
			"endpoint", r.URL.Path,
			"method", r.Method,
			"body", requestBody,
		)

		r = r.WithContext(context.WithValue(r.Context(), contextKeyReqID, requestID))
		w.Header().Set(HeaderRequestID, requestID)

		next.ServeHTTP(w, r)
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(contextKeyReqID).(string)
	return id
}

func getClientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.RemoteAddr
	}

	if i := strings.Index(ip, ","); i != -1 {
		ip = ip[:i]
	}
	if i := strings.LastIndex(ip, ":"); i != -1 && !strings.HasSuffix(ip, "]") {
		ip = ip[:i]
	}
	return strings.TrimSpace(ip)
}

// getRequestBody reads the body for logging and restores it for the handler.
// JSON bodies are compacted, anything else is logged verbatim.
func getRequestBody(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}

	requestBodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}

	r.Body = io.NopCloser(bytes.NewBuffer(requestBodyBytes))

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, requestBodyBytes); err == nil {
		return compacted.String(), nil
	}

	return string(requestBodyBytes), nil
}
