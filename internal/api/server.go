package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pigbank/internal/auth"
	"pigbank/internal/config"
	"pigbank/internal/credit"
	"pigbank/internal/dues"
	"pigbank/internal/engine"
	"pigbank/internal/ledger"
	"pigbank/internal/loan"
	"pigbank/internal/payment"
	"pigbank/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const userContextKey contextKey = "user"

type UserContext struct {
	UserID string
	Email  string
	Token  string
}

type Server struct {
	cfg         config.APIConfig
	log         *slog.Logger
	auth        *auth.SupabaseClient
	engine      *engine.Engine
	ledgers     store.Ledgers
	underwriter *loan.Underwriter
	issuer      *credit.Issuer
	mux         *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, authClient *auth.SupabaseClient, eng *engine.Engine, ledgers store.Ledgers) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:         cfg,
		log:         logger,
		auth:        authClient,
		engine:      eng,
		ledgers:     ledgers,
		underwriter: loan.NewUnderwriter(),
		issuer:      credit.NewIssuer(),
		mux:         chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/auth/logout", s.handleLogout)
			r.Delete("/account", s.handleDeleteAccount)

			r.Get("/ledger", s.handleLedger)
			r.Get("/ledger/watch", s.handleLedgerWatch)
			r.Get("/dues", s.handleDues)

			r.Post("/day/advance", s.handleAdvanceDay)
			r.Post("/payments", s.handlePayment)
			r.Post("/loans", s.handleLoanApply)
			r.Post("/credit/score", s.handleScoreRecompute)
			r.Post("/credit/cards", s.handleCardApply)
			r.Post("/jobs/select", s.handleJobSelect)
			r.Post("/shop/buy", s.handleShopBuy)

			r.Get("/timers", s.handleTimers)
			r.Post("/timers/{category}/start", s.handleTimerAction)
			r.Post("/timers/{category}/pause", s.handleTimerAction)
			r.Post("/timers/{category}/reset", s.handleTimerAction)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.auth.VerifyAccessToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID: user.ID,
			Email:  user.Email,
			Token:  token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, ledger.ErrNotAuthenticated
	}
	return user, nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.auth.SignUp(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if session.User.ID != "" {
		if _, err := s.engine.Signup(r.Context(), session.User.ID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := s.auth.Login(r.Context(), strings.TrimSpace(in.Email), strings.TrimSpace(in.Password))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	// Ledgers predating the service, or lost records, are recreated with
	// signup defaults.
	if _, err := s.engine.Signup(r.Context(), session.User.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.auth.SignOut(r.Context(), user.Token); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.engine.DeleteAccount(r.Context(), user.UserID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	l, err := s.ledgers.Get(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleLedgerWatch streams ledger snapshots as server-sent events. The
// current snapshot is sent first so the client never starts blind.
func (s *Server) handleLedgerWatch(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	snap, err := s.ledgers.Get(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	changes, err := s.ledgers.Watch(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(l *ledger.Ledger) bool {
		raw, err := json.Marshal(l)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", raw); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	if !writeEvent(snap) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case l, open := <-changes:
			if !open || !writeEvent(l) {
				return
			}
		}
	}
}

func (s *Server) handleDues(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	l, err := s.ledgers.Get(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	day := l.Day
	if q := r.URL.Query().Get("day"); q != "" {
		day, err = strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid day")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"day":   day,
		"items": dues.Upcoming(l, day),
	})
}

func (s *Server) handleAdvanceDay(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	result, err := s.engine.AdvanceDay(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var in struct {
		Label       string `json:"label"`
		AmountCents int64  `json:"amountCents"`
		LoanID      string `json:"loanId"`
		Method      string `json:"method"`
		AccountKey  string `json:"accountKey"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item := dues.Item{
		Label:  in.Label,
		Amount: ledger.Cents(in.AmountCents),
		LoanID: in.LoanID,
	}
	l, err := s.engine.SettleDue(r.Context(), user.UserID, item, payment.Method(in.Method), in.AccountKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleLoanApply(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var in struct {
		PrincipalCents int64 `json:"principalCents"`
		TermMonths     int   `json:"termMonths"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	decision, err := s.engine.ApplyForLoan(r.Context(), user.UserID, s.underwriter, ledger.Cents(in.PrincipalCents), in.TermMonths)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleScoreRecompute(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	score, err := s.engine.RecomputeScore(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"score": score})
}

func (s *Server) handleCardApply(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	decision, err := s.engine.ApplyForCard(r.Context(), user.UserID, s.issuer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleJobSelect(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var in struct {
		Job string `json:"job"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	decision, err := s.engine.SelectJob(r.Context(), user.UserID, ledger.ParseJob(in.Job))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleShopBuy(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var in struct {
		Item     string `json:"item"`
		Quantity int    `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	l, err := s.engine.Purchase(r.Context(), user.UserID, in.Item, in.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type timerState struct {
	Job       string `json:"job"`
	ElapsedMs int64  `json:"elapsedMs"`
	Minutes   int    `json:"minutes"`
	Running   bool   `json:"running"`
}

func (s *Server) handleTimers(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	states := make([]timerState, 0, 3)
	for _, job := range []ledger.Job{ledger.JobPartTime, ledger.JobCompany, ledger.JobFreelance} {
		sw := s.engine.Timers().For(user.UserID, job)
		states = append(states, timerState{
			Job:       string(job),
			ElapsedMs: sw.Elapsed().Milliseconds(),
			Minutes:   sw.Minutes(),
			Running:   sw.Running(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"timers": states})
}

func (s *Server) handleTimerAction(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	job := ledger.ParseJob(chi.URLParam(r, "category"))
	if !job.Valid() {
		writeError(w, http.StatusBadRequest, "unknown timer category")
		return
	}
	sw := s.engine.Timers().For(user.UserID, job)
	switch action := lastPathSegment(r.URL.Path); action {
	case "start":
		sw.Start()
	case "pause":
		sw.Pause()
	case "reset":
		sw.Reset()
	default:
		writeError(w, http.StatusBadRequest, "unknown timer action")
		return
	}
	writeJSON(w, http.StatusOK, timerState{
		Job:       string(job),
		ElapsedMs: sw.Elapsed().Milliseconds(),
		Minutes:   sw.Minutes(),
		Running:   sw.Running(),
	})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ledger.ErrLedgerMissing):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrInvalidSelection):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrInvariantBroken):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func lastPathSegment(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
