package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/service"
	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
	"github.com/BrandonDHaskell/labaccess/internal/labaccess/types"
)

type Dependencies struct {
	Logger *log.Logger
	Addr   string

	AccessService  *service.AccessService
	DoorService    *service.DoorService
	Registry       *service.Registry
	LedgerService  *service.LedgerService
	MetricsHandler http.Handler // nil leaves /metrics unmounted
	CORSOrigins    []string
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	router     chi.Router

	access   *service.AccessService
	doors    *service.DoorService
	registry *service.Registry
	ledger   *service.LedgerService
}

func NewServer(d Dependencies) *Server {
	r := chi.NewRouter()

	s := &Server{
		logger:   d.Logger,
		router:   r,
		access:   d.AccessService,
		doors:    d.DoorService,
		registry: d.Registry,
		ledger:   d.LedgerService,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware(d.Logger))
	r.Use(middleware.Recoverer)
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Route("/v1", func(r chi.Router) {
		// Hardware.
		r.Post("/scan", s.handleScan)
		r.Get("/doors/{roomID}", s.handleDoorStatus)

		// Administration.
		r.Post("/cards", s.handleRegisterCard)
		r.Delete("/cards/{cardUID}", s.handleRevokeCard)
		r.Post("/readers", s.handleRegisterReader)
		r.Put("/readers/{readerUID}/active", s.handleSetReaderActive)
		r.Get("/occupancy", s.handleOccupancy)

		r.Post("/scores", s.handleAdjustScore)
		r.Get("/users/{userID}/scores", s.handleScoreHistory)
		r.Post("/tasks/{taskID}/award", s.handleAwardTask)
	})
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ── Hardware ─────────────────────────────────────────────────────────────────

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req types.ScanRequest
	if isProtobuf(r) {
		var msg structpb.Struct
		if err := readProto(r, &msg); err != nil {
			writeError(w, http.StatusBadRequest, "bad_proto", "invalid protobuf body")
			return
		}
		req = scanRequestFromProto(&msg)
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	res, err := s.access.ProcessScan(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCardUID):
			writeError(w, http.StatusBadRequest, "invalid_card_uid", err.Error())
		case errors.Is(err, service.ErrInvalidReaderUID):
			writeError(w, http.StatusBadRequest, "invalid_reader_uid", err.Error())
		default:
			s.logger.Printf("scan error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	if wantsProtobuf(r) {
		msg, err := scanResultToProto(res)
		if err != nil {
			s.logger.Printf("scan proto encode: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDoorStatus(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomID")
	if !ok {
		return
	}

	status, err := s.doors.GetDoorStatus(r.Context(), roomID)
	if err != nil {
		s.serviceError(w, "door status", err)
		return
	}

	if wantsProtobuf(r) {
		msg, err := doorStatusToProto(status)
		if err != nil {
			s.logger.Printf("door proto encode: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ── Cards and readers ────────────────────────────────────────────────────────

func (s *Server) handleRegisterCard(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	card, err := s.registry.RegisterCard(r.Context(), req.UserID, req.CardUID, req.RegisteredBy)
	if err != nil {
		s.serviceError(w, "register card", err)
		return
	}
	writeJSON(w, http.StatusCreated, cardView(card))
}

func (s *Server) handleRevokeCard(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.RevokeCard(r.Context(), chi.URLParam(r, "cardUID")); err != nil {
		s.serviceError(w, "revoke card", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegisterReader(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterReaderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	loc := store.Location(strings.ToLower(strings.TrimSpace(req.Location)))
	reader, err := s.registry.RegisterReader(r.Context(), req.ReaderUID, req.RoomID, loc)
	if err != nil {
		s.serviceError(w, "register reader", err)
		return
	}
	writeJSON(w, http.StatusCreated, types.ReaderView{
		ID:        reader.ID,
		ReaderUID: reader.ReaderUID,
		RoomID:    reader.RoomID,
		Location:  string(reader.Location),
		Active:    reader.Active,
	})
}

func (s *Server) handleSetReaderActive(w http.ResponseWriter, r *http.Request) {
	var req types.SetReaderActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if err := s.registry.SetReaderActive(r.Context(), chi.URLParam(r, "readerUID"), req.Active); err != nil {
		s.serviceError(w, "set reader active", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	occ, err := s.registry.Occupants(r.Context())
	if err != nil {
		s.serviceError(w, "occupancy", err)
		return
	}
	out := make([]types.OccupantView, 0, len(occ))
	for _, o := range occ {
		out = append(out, types.OccupantView{
			UserID:    o.UserID,
			RoomID:    o.RoomID,
			CardUID:   o.CardUID,
			EntryTime: o.EntryTime.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ── Scores ───────────────────────────────────────────────────────────────────

func (s *Server) handleAdjustScore(w http.ResponseWriter, r *http.Request) {
	var req types.ScoreAdjustmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}
	if req.Points.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid_points", "points must be non-zero")
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, "invalid_reason", "reason is required")
		return
	}

	// AddScore skips unknown users silently; an administrator should hear
	// about it instead.
	if _, err := s.ledger.CheckLedger(r.Context(), req.UserID); err != nil {
		s.serviceError(w, "adjust score", err)
		return
	}
	if err := s.ledger.AddScore(r.Context(), service.ScoreEntry{
		UserID:        req.UserID,
		Points:        req.Points,
		Reason:        req.Reason,
		Category:      store.CategoryAdjustment,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		CreatedBy:     req.CreatedBy,
	}); err != nil {
		s.serviceError(w, "adjust score", err)
		return
	}

	resp, err := s.scoreHistory(r.Context(), req.UserID)
	if err != nil {
		s.serviceError(w, "adjust score", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleScoreHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	resp, err := s.scoreHistory(r.Context(), userID)
	if err != nil {
		s.serviceError(w, "score history", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) scoreHistory(ctx context.Context, userID int64) (types.ScoreHistoryResponse, error) {
	check, err := s.ledger.CheckLedger(ctx, userID)
	if err != nil {
		return types.ScoreHistoryResponse{}, err
	}
	rows, err := s.ledger.ScoreHistory(ctx, userID)
	if err != nil {
		return types.ScoreHistoryResponse{}, err
	}

	resp := types.ScoreHistoryResponse{
		UserID:     userID,
		TotalScore: check.TotalScore,
		LedgerSum:  check.LedgerSum,
		Consistent: check.Consistent,
		Entries:    make([]types.ScoreEntryView, 0, len(rows)),
	}
	if !check.Since.IsZero() {
		resp.Since = check.Since.UTC().Format(time.RFC3339)
	}
	for _, row := range rows {
		resp.Entries = append(resp.Entries, types.ScoreEntryView{
			ID:            row.ID,
			Points:        row.PointsChanged,
			Reason:        row.Reason,
			Category:      string(row.Category),
			ReferenceType: row.ReferenceType,
			ReferenceID:   row.ReferenceID,
			CreatedAt:     row.CreatedAt.UTC().Format(time.RFC3339Nano),
			CreatedBy:     row.CreatedBy,
		})
	}
	return resp, nil
}

func (s *Server) handleAwardTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(w, r, "taskID")
	if !ok {
		return
	}
	var req types.TaskAwardRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}
	}

	award, err := s.ledger.AwardTaskScore(r.Context(), taskID, req.AwardedBy)
	if err != nil {
		s.serviceError(w, "award task", err)
		return
	}
	writeJSON(w, http.StatusOK, types.TaskAwardResponse{
		TaskID:           award.TaskID,
		UserID:           award.UserID,
		Points:           award.Points,
		AlreadyProcessed: award.AlreadyProcessed,
	})
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_"+strings.ToLower(name), name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// serviceError maps service and store sentinels to HTTP statuses.  Anything
// unrecognised is logged and reported as a 500 without detail.
func (s *Server) serviceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownUser),
		errors.Is(err, service.ErrUnknownCard),
		errors.Is(err, service.ErrUnknownReader),
		errors.Is(err, service.ErrUnknownTask):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrReaderConflict):
		writeError(w, http.StatusConflict, "reader_conflict", err.Error())
	case errors.Is(err, service.ErrInvalidCardInput),
		errors.Is(err, service.ErrInvalidReaderID),
		errors.Is(err, service.ErrInvalidRoomID),
		errors.Is(err, service.ErrInvalidLocation):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrTaskNotDone),
		errors.Is(err, service.ErrTaskUnassigned),
		errors.Is(err, service.ErrTaskNotCategorized),
		errors.Is(err, service.ErrInvalidCategory):
		writeError(w, http.StatusUnprocessableEntity, "task_not_awardable", err.Error())
	default:
		s.logger.Printf("%s error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}

func cardView(c store.CardRecord) types.CardView {
	v := types.CardView{
		ID:          c.ID,
		CardUID:     c.CardUID,
		OwnerUserID: c.OwnerUserID,
		Active:      c.Active,
	}
	if c.LastUsedAt != nil {
		v.LastUsedAt = c.LastUsedAt.UTC().Format(time.RFC3339)
	}
	return v
}
