package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/office-betting-pool/internal/leaderboard"
	"github.com/radieske/office-betting-pool/internal/ledger"
	"github.com/radieske/office-betting-pool/internal/pool-service/auth"
	"github.com/radieske/office-betting-pool/internal/pool-service/dto"
	"github.com/radieske/office-betting-pool/internal/pool-service/ws"
	"github.com/radieske/office-betting-pool/pkg/contracts/events"
)

var (
	betsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pool_bets_created_total", Help: "apostas criadas"})
	betsPlacedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pool_bets_placed_total", Help: "entradas de participantes"})
	betsResolvedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pool_bets_resolved_total", Help: "apostas liquidadas"})
	stakeMismatchTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pool_stake_mismatch_total", Help: "entradas rejeitadas por stake divergente"})
)

func init() {
	prometheus.MustRegister(betsCreatedTotal, betsPlacedTotal, betsResolvedTotal, stakeMismatchTotal)
}

// Publisher emite os eventos do bolão (fire-and-forget; nunca participa da
// validação).
type Publisher interface {
	PublishBetCreated(context.Context, events.BetCreated) error
	PublishBetPlaced(context.Context, events.BetPlaced) error
	PublishBetResolved(context.Context, events.BetResolved) error
	PublishBalanceChanged(context.Context, events.BalanceChanged) error
}

// Server expõe a API HTTP do bolão.
type Server struct {
	log  *zap.Logger
	led  *ledger.Ledger
	sess *auth.Sessions
	lb   *leaderboard.Cache // nil no modo local sem Redis
	publ Publisher

	// Feed ao vivo via WebSocket. Ambos nil no modo local sem Redis.
	hub  *ws.Hub
	feed *ws.RedisBroadcaster
}

func NewServer(log *zap.Logger, led *ledger.Ledger, sess *auth.Sessions, lb *leaderboard.Cache, publ Publisher) *Server {
	return &Server{log: log, led: led, sess: sess, lb: lb, publ: publ}
}

// WithFeed habilita o feed ao vivo: o hub atende /ws e cada mutação de aposta
// é publicada no canal Pub/Sub do feed.
func (s *Server) WithFeed(hub *ws.Hub, feed *ws.RedisBroadcaster) *Server {
	s.hub = hub
	s.feed = feed
	return s
}

// Router retorna o mux HTTP com as rotas da API.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/signup", s.signup) // POST
	mux.HandleFunc("/login", s.login)   // POST
	mux.HandleFunc("/logout", s.logout) // POST
	mux.HandleFunc("/bets", s.bets)     // GET lista, POST cria
	mux.HandleFunc("/bets/", s.betByID) // GET /bets/{id}, POST /bets/{id}/join|resolve
	mux.HandleFunc("/leaderboard", s.getLeaderboard)
	mux.HandleFunc("/history", s.getHistory)
	mux.HandleFunc("/admin/tokens/add", s.addTokens)       // POST
	mux.HandleFunc("/admin/tokens/remove", s.removeTokens) // POST
	mux.HandleFunc("/admin/users", s.createUser)           // POST
	mux.HandleFunc("/admin/users/", s.deleteUser)          // DELETE /admin/users/{name}
	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.HandleWS)
	}
	return mux
}

// broadcast publica um evento no feed ao vivo, se habilitado.
func (s *Server) broadcast(ctx context.Context, kind, betID string, payload any) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, ws.FeedUpdate{Type: kind, BetID: betID, Payload: payload}); err != nil {
		s.log.Warn("feed publish", zap.String("type", kind), zap.Error(err))
	}
}

// currentUser resolve o token Bearer da requisição para o nome do usuário.
// Retorna "" quando não há sessão válida.
func (s *Server) currentUser(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	name, ok := s.sess.Resolve(strings.TrimPrefix(h, prefix))
	if !ok {
		return ""
	}
	return name
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	user, err := s.led.CreateUser(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	token := s.sess.Start(user.Name)
	writeJSON(w, dto.SessionResponse{Token: token, Username: user.Name, IsAdmin: user.IsAdmin, Tokens: user.Tokens})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	user, err := s.led.User(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	token := s.sess.Start(user.Name)
	writeJSON(w, dto.SessionResponse{Token: token, Username: user.Name, IsAdmin: user.IsAdmin, Tokens: user.Tokens})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		s.sess.End(strings.TrimPrefix(h, "Bearer "))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"logged_out"}`))
}

func (s *Server) bets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		bets, err := s.led.Bets(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, dto.BetListResponse{Bets: bets})
	case http.MethodPost:
		s.createBet(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) createBet(w http.ResponseWriter, r *http.Request) {
	acting := s.currentUser(r)
	if acting == "" {
		writeKind(w, http.StatusUnauthorized, ledger.KindNotAuthenticated, "You must be logged in to create a bet")
		return
	}
	var req dto.CreateBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	bet, err := s.led.CreateBet(r.Context(), acting, req.Description, req.Options, req.Stake, req.Deadline, req.CreatorOption)
	if err != nil {
		s.writeError(w, err)
		return
	}

	betsCreatedTotal.Inc()
	_ = s.publ.PublishBetCreated(r.Context(), events.BetCreated{
		BetID:        bet.ID,
		Creator:      bet.Creator,
		Description:  bet.Description,
		Options:      bet.Options,
		CreatorStake: bet.CreatorStake,
		Deadline:     bet.Deadline,
	})
	s.broadcast(r.Context(), "bet_created", bet.ID, bet)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(dto.BetResponse{Bet: *bet})
}

func (s *Server) betByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/bets/")
	switch {
	case strings.HasSuffix(rest, "/join"):
		s.joinBet(w, r, strings.TrimSuffix(rest, "/join"))
	case strings.HasSuffix(rest, "/resolve"):
		s.resolveBet(w, r, strings.TrimSuffix(rest, "/resolve"))
	default:
		s.getBet(w, r, rest)
	}
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if id == "" {
		http.Error(w, "betId required", http.StatusBadRequest)
		return
	}
	bet, err := s.led.Bet(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, dto.BetResponse{Bet: *bet})
}

func (s *Server) joinBet(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.JoinBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	acting := s.currentUser(r)
	bet, err := s.led.PlaceBet(r.Context(), acting, id, req.Option, req.Stake)
	if err != nil {
		if ledger.KindOf(err) == ledger.KindStakeMismatch {
			stakeMismatchTotal.Inc()
		}
		s.writeError(w, err)
		return
	}

	betsPlacedTotal.Inc()
	_ = s.publ.PublishBetPlaced(r.Context(), events.BetPlaced{
		BetID:    bet.ID,
		Username: acting,
		Option:   req.Option,
		Stake:    req.Stake,
	})
	s.broadcast(r.Context(), "bet_placed", bet.ID, bet)

	writeJSON(w, dto.PlaceBetResponse{
		Message: fmt.Sprintf("Bet placed on %q for %d tokens", req.Option, req.Stake),
		Bet:     *bet,
	})
}

func (s *Server) resolveBet(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.ResolveBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	acting := s.currentUser(r)
	bet, summary, err := s.led.ResolveBet(r.Context(), acting, id, req.WinningOption)
	if err != nil {
		s.writeError(w, err)
		return
	}

	betsResolvedTotal.Inc()
	_ = s.publ.PublishBetResolved(r.Context(), events.BetResolved{
		BetID:             bet.ID,
		WinningOption:     bet.PotSplit.WinningOption,
		TotalPot:          bet.PotSplit.TotalPot,
		WinnerCount:       bet.PotSplit.WinnerCount,
		WinningsPerWinner: bet.PotSplit.WinningsPerWinner,
		HouseCollected:    bet.PotSplit.HouseCollected,
		WinnerNames:       bet.PotSplit.WinnerNames,
		ResolvedBy:        bet.ResolvedBy,
	})
	s.broadcast(r.Context(), "bet_resolved", bet.ID, bet)

	writeJSON(w, dto.ResolveBetResponse{Message: summary, Bet: *bet})
}

func (s *Server) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	n, _ := strconv.Atoi(r.URL.Query().Get("n"))

	// Preferência pelo ranking do Redis; cai para o user store quando o
	// cache está vazio ou fora do ar (é só uma view, o saldo canônico
	// continua no store).
	if s.lb != nil {
		standings, ok, err := s.lb.Top(r.Context(), n)
		if err != nil {
			s.log.Warn("leaderboard cache read", zap.Error(err))
		} else if ok {
			writeJSON(w, dto.LeaderboardResponse{Standings: standings})
			return
		}
	}

	standings, err := s.led.Leaderboard(r.Context(), n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, dto.LeaderboardResponse{Standings: standings})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	acting := s.currentUser(r)
	if acting == "" {
		writeKind(w, http.StatusUnauthorized, ledger.KindNotAuthenticated, "You must be logged in to view balance history")
		return
	}
	entries, err := s.led.History(r.Context(), acting)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, dto.HistoryResponse{Entries: entries})
}

// requireAdmin valida a sessão e o flag de admin; retorna "" se já respondeu.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) string {
	acting := s.currentUser(r)
	if acting == "" {
		writeKind(w, http.StatusUnauthorized, ledger.KindNotAuthenticated, "You must be logged in")
		return ""
	}
	user, err := s.led.User(r.Context(), acting)
	if err != nil || !user.IsAdmin {
		writeKind(w, http.StatusForbidden, ledger.KindNotAuthorized, "Admin access required")
		return ""
	}
	return acting
}

func (s *Server) addTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.requireAdmin(w, r) == "" {
		return
	}
	var req dto.AdjustTokensRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	newBalance, err := s.led.AddTokens(r.Context(), req.Username, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, dto.TokensResponse{
		Username:   req.Username,
		NewBalance: newBalance,
		Message:    fmt.Sprintf("Added %d tokens to %s", req.Amount, req.Username),
	})
}

func (s *Server) removeTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.requireAdmin(w, r) == "" {
		return
	}
	var req dto.AdjustTokensRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	removed, newBalance, err := s.led.RemoveTokens(r.Context(), req.Username, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	msg := fmt.Sprintf("Removed %d tokens from %s. New balance: %d tokens", removed, req.Username, newBalance)
	if removed < req.Amount {
		msg = fmt.Sprintf("Removed %d tokens from %s (user only had %d tokens). New balance: 0 tokens", removed, req.Username, removed)
	}
	writeJSON(w, dto.TokensResponse{
		Username:   req.Username,
		Removed:    removed,
		NewBalance: newBalance,
		Message:    msg,
	})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.requireAdmin(w, r) == "" {
		return
	}
	var req dto.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	user, err := s.led.CreateUser(r.Context(), req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(dto.UserResponse{User: *user})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.requireAdmin(w, r) == "" {
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/admin/users/")
	if name == "" {
		http.Error(w, "username required", http.StatusBadRequest)
		return
	}
	if err := s.led.DeleteUser(r.Context(), name); err != nil {
		s.writeError(w, err)
		return
	}

	// Derruba sessões do usuário removido e tira ele do ranking.
	s.sess.EndAllFor(name)
	if s.lb != nil {
		if err := s.lb.Remove(r.Context(), name); err != nil {
			s.log.Warn("leaderboard cache remove", zap.Error(err))
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"deleted"}`))
}

// writeError traduz um erro do ledger para status HTTP + corpo com kind.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := ledger.KindOf(err)
	if kind == ledger.KindStoreUnavailable {
		s.log.Error("store unavailable", zap.Error(err))
	}
	writeKind(w, statusFor(kind), kind, err.Error())
}

func statusFor(kind ledger.Kind) int {
	switch kind {
	case ledger.KindNotAuthenticated:
		return http.StatusUnauthorized
	case ledger.KindNotAuthorized, ledger.KindCannotModifyAdmin, ledger.KindCannotDeleteAdmin:
		return http.StatusForbidden
	case ledger.KindUserNotFound, ledger.KindBetNotFound:
		return http.StatusNotFound
	case ledger.KindUserExists, ledger.KindInsufficientFunds, ledger.KindBetClosed,
		ledger.KindDeadlinePassed, ledger.KindDuplicateParticipation,
		ledger.KindStakeMismatch, ledger.KindAlreadyResolved:
		return http.StatusConflict
	case ledger.KindInvalidOptions, ledger.KindInvalidCreatorOption, ledger.KindInvalidStake,
		ledger.KindInvalidOption, ledger.KindInvalidWinningOption, ledger.KindInvalidAmount,
		ledger.KindInvalidUsername:
		return http.StatusBadRequest
	case ledger.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeKind(w http.ResponseWriter, status int, kind ledger.Kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: msg, Kind: string(kind)})
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
