package tablestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"scrutin/internal/auth"
	"scrutin/internal/logging"
)

const maxBodyBytes = 8 << 20

// Server exposes a Store over the values API.
type Server struct {
	store         *Store
	secret        string
	spreadsheetID string
	logger        *slog.Logger
}

// NewServer builds a server that accepts HS256 bearer tokens signed with
// secret. A non-empty spreadsheetID restricts requests to that id.
func NewServer(store *Store, secret, spreadsheetID string, logger *slog.Logger) *Server {
	return &Server{
		store:         store,
		secret:        secret,
		spreadsheetID: strings.TrimSpace(spreadsheetID),
		logger:        logging.NewComponentLogger(logger, "tablestore"),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v4/spreadsheets/{id}/values/{rng}", s.authenticated(s.handleGet))
	mux.HandleFunc("PUT /v4/spreadsheets/{id}/values/{rng}", s.authenticated(s.handlePut))
	mux.HandleFunc("POST /v4/spreadsheets/{id}/values/{rng}", s.authenticated(s.handleAppend))
	mux.HandleFunc("POST /v4/spreadsheets/{id}/values:batchUpdate", s.authenticated(s.handleBatchUpdate))
	mux.HandleFunc("POST /v4/spreadsheets/{id}/values:batchClear", s.authenticated(s.handleBatchClear))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, bind string) error {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("table store listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("table store listening",
		logging.String("address", listener.Addr().String()),
		logging.String("database", s.store.Path()),
	)
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("table store serve: %w", err)
	}
	return nil
}

func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := auth.Verify(s.secret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		if s.spreadsheetID != "" && r.PathValue("id") != s.spreadsheetID {
			writeError(w, http.StatusNotFound, "spreadsheet not found")
			return
		}
		started := time.Now()
		next(w, r)
		s.logger.Debug("values request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldActor, claims.Subject),
			logging.String(logging.FieldCorrelationID, r.Header.Get("X-Request-ID")),
			logging.Duration("latency", time.Since(started)),
		)
	}
}

type valueRange struct {
	Range          string  `json:"range,omitempty"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values,omitempty"`
}

type updateResponse struct {
	SpreadsheetID string `json:"spreadsheetId"`
	UpdatedRange  string `json:"updatedRange"`
	UpdatedRows   int    `json:"updatedRows"`
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseRange(r.PathValue("rng"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	rows, err := s.store.Get(r.Context(), rng)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	resp := valueRange{Range: rng.String(), MajorDimension: "ROWS"}
	for _, row := range rows {
		cells := make([]any, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		resp.Values = append(resp.Values, cells)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseRange(r.PathValue("rng"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	var body valueRange
	if !decodeBody(w, r, &body) {
		return
	}
	values := stringify(body.Values)
	n, err := s.store.Put(r.Context(), rng, values)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{
		SpreadsheetID: r.PathValue("id"),
		UpdatedRange:  rng.String(),
		UpdatedRows:   n,
	})
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	raw, ok := strings.CutSuffix(r.PathValue("rng"), ":append")
	if !ok {
		writeError(w, http.StatusNotFound, "unknown values method")
		return
	}
	rng, err := ParseRange(raw)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	var body valueRange
	if !decodeBody(w, r, &body) {
		return
	}
	values := stringify(body.Values)
	if len(values) == 0 {
		writeError(w, http.StatusBadRequest, "no values to append")
		return
	}
	written, err := s.store.Append(r.Context(), rng, values)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"spreadsheetId": r.PathValue("id"),
		"tableRange":    rng.Sheet,
		"updates": updateResponse{
			SpreadsheetID: r.PathValue("id"),
			UpdatedRange:  written.String(),
			UpdatedRows:   len(values),
		},
	})
}

func (s *Server) handleBatchUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ValueInputOption string       `json:"valueInputOption"`
		Data             []valueRange `json:"data"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	data := make([]ValueRange, 0, len(body.Data))
	rows := 0
	for _, vr := range body.Data {
		rng, err := ParseRange(vr.Range)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		values := stringify(vr.Values)
		rows += len(values)
		data = append(data, ValueRange{Range: rng, Values: values})
	}
	if err := s.store.BatchPut(r.Context(), data); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"spreadsheetId":    r.PathValue("id"),
		"totalUpdatedRows": rows,
	})
}

func (s *Server) handleBatchClear(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Ranges []string `json:"ranges"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	ranges := make([]Range, 0, len(body.Ranges))
	for _, raw := range body.Ranges {
		rng, err := ParseRange(raw)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		ranges = append(ranges, rng)
	}
	if err := s.store.BatchClear(r.Context(), ranges); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"spreadsheetId": r.PathValue("id"),
		"clearedRanges": body.Ranges,
	})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRange), errors.Is(err, ErrUnknownSheet):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("values request failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func stringify(values [][]any) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, cell := range row {
			switch v := cell.(type) {
			case nil:
			case string:
				cells[j] = v
			case json.Number:
				cells[j] = v.String()
			case bool:
				if v {
					cells[j] = "TRUE"
				} else {
					cells[j] = "FALSE"
				}
			default:
				cells[j] = fmt.Sprint(v)
			}
		}
		out[i] = cells
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"status":  http.StatusText(status),
		},
	})
}
