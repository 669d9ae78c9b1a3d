package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/radieske/office-betting-pool/internal/leaderboard"
	"github.com/radieske/office-betting-pool/internal/ledger"
	"github.com/radieske/office-betting-pool/internal/pool-service/auth"
	phttp "github.com/radieske/office-betting-pool/internal/pool-service/http"
	"github.com/radieske/office-betting-pool/internal/pool-service/dto"
	"github.com/radieske/office-betting-pool/internal/pool-service/producer"
	"github.com/radieske/office-betting-pool/internal/pool-service/repo"
)

type testAPI struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	mem := repo.NewMemory()
	led := ledger.New(mem, mem, mem, "admin")
	if _, err := led.EnsureAdmin(context.Background()); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	api := phttp.NewServer(zap.NewNop(), led, auth.NewSessions(), nil, producer.Nop{})
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return &testAPI{t: t, srv: srv, client: srv.Client()}
}

// do envia a requisição com o corpo serializado e decodifica a resposta em out.
func (a *testAPI) do(method, path, token string, body, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	if err != nil {
		a.t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			a.t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (a *testAPI) signup(name string) string {
	a.t.Helper()
	var sess dto.SessionResponse
	if code := a.do(http.MethodPost, "/signup", "", dto.SignupRequest{Username: name}, &sess); code != http.StatusOK {
		a.t.Fatalf("signup %s: status %d", name, code)
	}
	return sess.Token
}

func (a *testAPI) loginAdmin() string {
	a.t.Helper()
	var sess dto.SessionResponse
	if code := a.do(http.MethodPost, "/login", "", dto.LoginRequest{Username: "admin"}, &sess); code != http.StatusOK {
		a.t.Fatalf("admin login: status %d", code)
	}
	return sess.Token
}

func (a *testAPI) createBet(token string, stake int64) string {
	a.t.Helper()
	var created dto.BetResponse
	code := a.do(http.MethodPost, "/bets", token, dto.CreateBetRequest{
		Description:   "Coffee machine fixed by Friday",
		Options:       []string{"Yes", "No"},
		Stake:         stake,
		Deadline:      time.Now().Add(24 * time.Hour),
		CreatorOption: "Yes",
	}, &created)
	if code != http.StatusCreated {
		a.t.Fatalf("create bet: status %d", code)
	}
	return created.Bet.ID
}

func TestSignupAndLogin(t *testing.T) {
	api := newTestAPI(t)

	var sess dto.SessionResponse
	code := api.do(http.MethodPost, "/signup", "", dto.SignupRequest{Username: "alice"}, &sess)
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "alice", sess.Username)
	assert.Equal(t, int64(100), sess.Tokens)
	assert.False(t, sess.IsAdmin)

	var dup dto.ErrorResponse
	code = api.do(http.MethodPost, "/signup", "", dto.SignupRequest{Username: "alice"}, &dup)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "User already exists", dup.Error)
	assert.Equal(t, string(ledger.KindUserExists), dup.Kind)

	var missing dto.ErrorResponse
	code = api.do(http.MethodPost, "/login", "", dto.LoginRequest{Username: "ghost"}, &missing)
	assert.Equal(t, http.StatusNotFound, code)

	code = api.do(http.MethodPost, "/login", "", dto.LoginRequest{Username: "alice"}, &sess)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, sess.IsAdmin == false && sess.Token != "")
}

func TestBetRoutes(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice")
	bob := api.signup("bob")

	t.Run("create requires a session", func(t *testing.T) {
		var errResp dto.ErrorResponse
		code := api.do(http.MethodPost, "/bets", "", dto.CreateBetRequest{}, &errResp)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, string(ledger.KindNotAuthenticated), errResp.Kind)
	})

	betID := api.createBet(alice, 10)

	t.Run("list and fetch", func(t *testing.T) {
		var list dto.BetListResponse
		code := api.do(http.MethodGet, "/bets", "", nil, &list)
		assert.Equal(t, http.StatusOK, code)
		assert.Len(t, list.Bets, 1)

		var one dto.BetResponse
		code = api.do(http.MethodGet, "/bets/"+betID, "", nil, &one)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, betID, one.Bet.ID)

		var missing dto.ErrorResponse
		code = api.do(http.MethodGet, "/bets/nope", "", nil, &missing)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("join enforces the uniform stake", func(t *testing.T) {
		var errResp dto.ErrorResponse
		code := api.do(http.MethodPost, "/bets/"+betID+"/join", bob, dto.JoinBetRequest{Option: "No", Stake: 5}, &errResp)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, string(ledger.KindStakeMismatch), errResp.Kind)
		assert.Equal(t, "Your stake must be 10 tokens to match the bet creator's stake", errResp.Error)

		var placed dto.PlaceBetResponse
		code = api.do(http.MethodPost, "/bets/"+betID+"/join", bob, dto.JoinBetRequest{Option: "No", Stake: 10}, &placed)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, `Bet placed on "No" for 10 tokens`, placed.Message)
		assert.Len(t, placed.Bet.Participants, 2)
	})

	t.Run("resolve is admin only", func(t *testing.T) {
		var errResp dto.ErrorResponse
		code := api.do(http.MethodPost, "/bets/"+betID+"/resolve", alice, dto.ResolveBetRequest{WinningOption: "Yes"}, &errResp)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, string(ledger.KindNotAuthorized), errResp.Kind)

		admin := api.loginAdmin()
		var resolved dto.ResolveBetResponse
		code = api.do(http.MethodPost, "/bets/"+betID+"/resolve", admin, dto.ResolveBetRequest{WinningOption: "No"}, &resolved)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Bet resolved successfully. 1 winner received 20 tokens each from a total pot of 20 tokens.", resolved.Message)
		assert.Equal(t, "No", resolved.Bet.Winner)

		var again dto.ErrorResponse
		code = api.do(http.MethodPost, "/bets/"+betID+"/resolve", admin, dto.ResolveBetRequest{WinningOption: "No"}, &again)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, string(ledger.KindAlreadyResolved), again.Kind)
	})
}

func TestHistoryRoute(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice")

	var errResp dto.ErrorResponse
	code := api.do(http.MethodGet, "/history", "", nil, &errResp)
	assert.Equal(t, http.StatusUnauthorized, code)

	var hist dto.HistoryResponse
	code = api.do(http.MethodGet, "/history", alice, nil, &hist)
	assert.Equal(t, http.StatusOK, code)
	if assert.Len(t, hist.Entries, 1) {
		assert.Equal(t, "Initial balance", hist.Entries[0].Description)
	}
}

func TestLeaderboardRoute(t *testing.T) {
	api := newTestAPI(t)
	api.signup("alice")
	bob := api.signup("bob")
	admin := api.loginAdmin()

	// bob gasta 10 criando uma aposta, alice fica na frente
	var created dto.BetResponse
	code := api.do(http.MethodPost, "/bets", bob, dto.CreateBetRequest{
		Description:   "x",
		Options:       []string{"Yes", "No"},
		Stake:         10,
		Deadline:      time.Now().Add(time.Hour),
		CreatorOption: "Yes",
	}, &created)
	assert.Equal(t, http.StatusCreated, code)

	var board dto.LeaderboardResponse
	code = api.do(http.MethodGet, "/leaderboard", "", nil, &board)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []ledger.Standing{
		{Name: "alice", Tokens: 100},
		{Name: "bob", Tokens: 90},
	}, board.Standings)

	var top1 dto.LeaderboardResponse
	code = api.do(http.MethodGet, "/leaderboard?n=1", admin, nil, &top1)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, top1.Standings, 1)
}

func TestLeaderboardRouteFromCache(t *testing.T) {
	mem := repo.NewMemory()
	led := ledger.New(mem, mem, mem, "admin")
	if _, err := led.EnsureAdmin(context.Background()); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	mr := miniredis.RunT(t)
	lb := leaderboard.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	api := phttp.NewServer(zap.NewNop(), led, auth.NewSessions(), lb, producer.Nop{})
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	a := &testAPI{t: t, srv: srv, client: srv.Client()}

	// ranking servido pelo cache, sem usuários no store
	ctx := context.Background()
	for name, tokens := range map[string]int64{"alice": 100, "bob": 150, "carol": 60} {
		if err := lb.Set(ctx, name, tokens); err != nil {
			t.Fatalf("cache set: %v", err)
		}
	}

	var board dto.LeaderboardResponse
	code := a.do(http.MethodGet, "/leaderboard", "", nil, &board)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []ledger.Standing{
		{Name: "bob", Tokens: 150},
		{Name: "alice", Tokens: 100},
		{Name: "carol", Tokens: 60},
	}, board.Standings)

	var top1 dto.LeaderboardResponse
	code = a.do(http.MethodGet, "/leaderboard?n=1", "", nil, &top1)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []ledger.Standing{{Name: "bob", Tokens: 150}}, top1.Standings)
}

func TestAdminTokenRoutes(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signup("alice")
	admin := api.loginAdmin()

	t.Run("non-admin is rejected", func(t *testing.T) {
		var errResp dto.ErrorResponse
		code := api.do(http.MethodPost, "/admin/tokens/add", alice, dto.AdjustTokensRequest{Username: "alice", Amount: 10}, &errResp)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, "Admin access required", errResp.Error)
	})

	t.Run("add", func(t *testing.T) {
		var resp dto.TokensResponse
		code := api.do(http.MethodPost, "/admin/tokens/add", admin, dto.AdjustTokensRequest{Username: "alice", Amount: 50}, &resp)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, int64(150), resp.NewBalance)
		assert.Equal(t, "Added 50 tokens to alice", resp.Message)
	})

	t.Run("remove clamps to the balance", func(t *testing.T) {
		var resp dto.TokensResponse
		code := api.do(http.MethodPost, "/admin/tokens/remove", admin, dto.AdjustTokensRequest{Username: "alice", Amount: 30}, &resp)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, int64(30), resp.Removed)
		assert.Equal(t, int64(120), resp.NewBalance)
		assert.Equal(t, "Removed 30 tokens from alice. New balance: 120 tokens", resp.Message)

		code = api.do(http.MethodPost, "/admin/tokens/remove", admin, dto.AdjustTokensRequest{Username: "alice", Amount: 500}, &resp)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, int64(120), resp.Removed)
		assert.Equal(t, int64(0), resp.NewBalance)
		assert.Equal(t, "Removed 120 tokens from alice (user only had 120 tokens). New balance: 0 tokens", resp.Message)
	})

	t.Run("admin account is off limits", func(t *testing.T) {
		var errResp dto.ErrorResponse
		code := api.do(http.MethodPost, "/admin/tokens/add", admin, dto.AdjustTokensRequest{Username: "admin", Amount: 10}, &errResp)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, "Cannot modify admin tokens", errResp.Error)
	})
}

func TestAdminUserRoutes(t *testing.T) {
	api := newTestAPI(t)
	admin := api.loginAdmin()

	var created dto.UserResponse
	code := api.do(http.MethodPost, "/admin/users", admin, dto.CreateUserRequest{Username: "carol"}, &created)
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "carol", created.User.Name)
	assert.Equal(t, int64(100), created.User.Tokens)

	// sessão da carol morre junto com a conta
	var carolSess dto.SessionResponse
	code = api.do(http.MethodPost, "/login", "", dto.LoginRequest{Username: "carol"}, &carolSess)
	assert.Equal(t, http.StatusOK, code)

	code = api.do(http.MethodDelete, "/admin/users/carol", admin, nil, nil)
	assert.Equal(t, http.StatusOK, code)

	var errResp dto.ErrorResponse
	code = api.do(http.MethodGet, "/history", carolSess.Token, nil, &errResp)
	assert.Equal(t, http.StatusUnauthorized, code)

	var protected dto.ErrorResponse
	code = api.do(http.MethodDelete, "/admin/users/admin", admin, nil, &protected)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Cannot delete the admin user", protected.Error)
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/signup", "/login", "/logout", "/admin/tokens/add"} {
		resp, err := api.client.Get(api.srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, fmt.Sprintf("GET %s", path))
	}
}
