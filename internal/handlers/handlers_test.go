package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/codeduel/internal/auth"
	"github.com/jason-s-yu/codeduel/internal/battle"
	"github.com/jason-s-yu/codeduel/internal/executor"
	"github.com/jason-s-yu/codeduel/internal/models"
	"github.com/jason-s-yu/codeduel/internal/realtime"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoExecutor prints its stdin back when the source is "echo", and nothing otherwise.
type echoExecutor struct{}

func (echoExecutor) Execute(_ context.Context, req executor.Request) (executor.Result, error) {
	if req.Source == "echo" {
		return executor.Result{Stdout: req.Stdin}, nil
	}
	return executor.Result{}, nil
}

type testServer struct {
	*httptest.Server
	auth *auth.Authority
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	problems := battle.NewStaticPool([]models.Problem{
		{ID: "p1", Title: "Echo", Language: "python", Difficulty: models.DifficultyEasy,
			TestCases: []models.TestCase{{Input: "a", ExpectedOutput: "a"}, {Input: "b", ExpectedOutput: "b"}}},
		{ID: "p2", Title: "Echo again", Language: "python", Difficulty: models.DifficultyEasy,
			TestCases: []models.TestCase{{Input: "c", ExpectedOutput: "c"}}},
	})
	opts := battle.DefaultOptions()
	opts.BotProfiles.MinDelayMs = uint(time.Hour / time.Millisecond)
	engine := battle.NewEngine(battle.NewMemoryStore(), problems, echoExecutor{}, realtime.NewLocalBus(), logger, opts)
	t.Cleanup(engine.Close)

	a, err := auth.New(time.Hour)
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(&Server{
		Engine:         engine,
		Auth:           a,
		Logger:         logger,
		SubmitTimeout:  5 * time.Second,
		AllowedOrigins: []string{"*"},
	}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, auth: a}
}

func (ts *testServer) token(t *testing.T, player uuid.UUID) string {
	t.Helper()
	token, err := ts.auth.CreateJWT(player)
	require.NoError(t, err)
	return token
}

// do sends a JSON request as player and decodes the response into out when given.
func (ts *testServer) do(t *testing.T, player uuid.UUID, method, path string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	if player != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+ts.token(t, player))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestBattleFlowOverHTTP(t *testing.T) {
	ts := setupServer(t)
	host, guest := uuid.New(), uuid.New()

	var created models.Battle
	status := ts.do(t, host, http.MethodPost, "/battles", map[string]any{
		"language": "python", "difficulty": "EASY", "totalRounds": 1, "roundTimeLimitSec": 60,
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, models.StatusWaiting, created.Status)
	require.Len(t, created.RoomCode, battle.RoomCodeLength)

	var joined models.Battle
	status = ts.do(t, guest, http.MethodPost, "/battles/join", map[string]string{"roomCode": strings.ToLower(created.RoomCode)}, &joined)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.StatusInProgress, joined.Status)
	assert.Equal(t, guest, joined.PlayerTwoID)

	var round roundResponse
	status = ts.do(t, host, http.MethodGet, "/battles/"+created.ID.String()+"/round", nil, &round)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.ProblemIDs[0], round.Problem.ID)
	assert.NotEmpty(t, round.Problem.Inputs)

	var submitted battle.SubmitResult
	status = ts.do(t, host, http.MethodPost, "/battles/"+created.ID.String()+"/submissions", map[string]any{
		"code": "echo", "timeTakenMs": 10_000,
	}, &submitted)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, submitted.Attempt.Correct)
	assert.Equal(t, 150, submitted.Attempt.PointsEarned)

	status = ts.do(t, guest, http.MethodPost, "/battles/"+created.ID.String()+"/submissions", map[string]any{
		"code": "print()", "timeTakenMs": 30_000,
	}, &submitted)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, submitted.Attempt.Correct)

	var final models.Battle
	require.Equal(t, http.StatusOK, ts.do(t, guest, http.MethodGet, "/battles/"+created.ID.String(), nil, &final))
	assert.Equal(t, models.StatusCompleted, final.Status, "both players submitted on the last round")
	require.NotNil(t, final.WinnerID)
	assert.Equal(t, host, *final.WinnerID)

	var attempts []models.Attempt
	require.Equal(t, http.StatusOK, ts.do(t, host, http.MethodGet, "/battles/"+created.ID.String()+"/attempts", nil, &attempts))
	assert.Len(t, attempts, 2)
}

func TestErrorStatuses(t *testing.T) {
	ts := setupServer(t)
	host := uuid.New()

	var created models.Battle
	require.Equal(t, http.StatusCreated, ts.do(t, host, http.MethodPost, "/battles", map[string]any{
		"language": "python", "difficulty": "EASY", "totalRounds": 1, "roundTimeLimitSec": 60,
	}, &created))
	path := "/battles/" + created.ID.String()

	var body errorBody
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, uuid.Nil, http.MethodGet, path, nil, nil))

	assert.Equal(t, http.StatusBadRequest, ts.do(t, host, http.MethodPost, "/battles", map[string]any{
		"language": "python", "difficulty": "EASY", "totalRounds": 5, "roundTimeLimitSec": 60,
	}, &body))
	assert.Equal(t, "no_eligible_problems", body.Error)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, host, http.MethodPost, "/battles/join", map[string]string{"roomCode": created.RoomCode}, &body))
	assert.Equal(t, "self_join", body.Error)

	assert.Equal(t, http.StatusNotFound, ts.do(t, host, http.MethodPost, "/battles/join", map[string]string{"roomCode": "ZZZZZZ"}, &body))
	assert.Equal(t, "room_not_found", body.Error)

	assert.Equal(t, http.StatusNotFound, ts.do(t, host, http.MethodGet, "/battles/not-a-uuid", nil, &body))
	assert.Equal(t, http.StatusNotFound, ts.do(t, host, http.MethodGet, "/battles/"+uuid.NewString(), nil, &body))

	assert.Equal(t, http.StatusForbidden, ts.do(t, uuid.New(), http.MethodPost, path+"/cancel", nil, &body))
	assert.Equal(t, "not_participant", body.Error)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, host, http.MethodGet, path+"/round", nil, &body))
	assert.Equal(t, "battle_not_active", body.Error)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, host, http.MethodPost, "/battles", map[string]any{"rounds": 2}, &body))
	assert.Equal(t, "bad_request", body.Error)
}

func TestAdvanceFromStaleRoundIsNoop(t *testing.T) {
	ts := setupServer(t)
	host := uuid.New()

	var created models.Battle
	require.Equal(t, http.StatusCreated, ts.do(t, host, http.MethodPost, "/battles", map[string]any{
		"language": "python", "difficulty": "EASY", "totalRounds": 2, "roundTimeLimitSec": 60, "opponent": "bot",
	}, &created))
	path := "/battles/" + created.ID.String() + "/advance"

	var b models.Battle
	require.Equal(t, http.StatusOK, ts.do(t, host, http.MethodPost, path, map[string]int{"fromRound": 0}, &b))
	assert.Equal(t, 1, b.CurrentRound)
	require.Equal(t, http.StatusOK, ts.do(t, host, http.MethodPost, path, map[string]int{"fromRound": 0}, &b))
	assert.Equal(t, 1, b.CurrentRound)
	assert.Equal(t, models.StatusInProgress, b.Status)
}

func TestGuestHandlerIssuesToken(t *testing.T) {
	ts := setupServer(t)

	resp, err := http.Post(ts.URL+"/auth/guest", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var g guestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&g))
	id, err := ts.auth.AuthenticateJWT(g.Token)
	require.NoError(t, err)
	assert.Equal(t, g.PlayerID, id)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
}

func dialBattle(t *testing.T, ts *testServer, id uuid.UUID, player uuid.UUID, subprotocol string) (*websocket.Conn, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	header := http.Header{}
	header.Set("Cookie", auth.CookieName+"="+ts.token(t, player))
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/battles/"+id.String()+"/ws", &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   header,
	})
	return c, err
}

func TestBattleSocketStreamsUntilTerminal(t *testing.T) {
	ts := setupServer(t)
	host := uuid.New()

	var created models.Battle
	require.Equal(t, http.StatusCreated, ts.do(t, host, http.MethodPost, "/battles", map[string]any{
		"language": "python", "difficulty": "EASY", "totalRounds": 1, "roundTimeLimitSec": 60,
	}, &created))

	c, err := dialBattle(t, ts, created.ID, host, battleSubprotocol)
	require.NoError(t, err)
	defer c.CloseNow()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var ev BattleEvent
	require.NoError(t, wsjson.Read(ctx, c, &ev))
	assert.Equal(t, "battle", ev.Type)
	assert.Equal(t, models.StatusWaiting, ev.Battle.Status)

	require.Equal(t, http.StatusOK, ts.do(t, host, http.MethodPost, "/battles/"+created.ID.String()+"/cancel", nil, nil))

	for ev.Battle.Status != models.StatusCancelled {
		require.NoError(t, wsjson.Read(ctx, c, &ev))
	}

	_, _, err = c.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestBattleSocketRejections(t *testing.T) {
	ts := setupServer(t)
	host := uuid.New()

	var created models.Battle
	require.Equal(t, http.StatusCreated, ts.do(t, host, http.MethodPost, "/battles", map[string]any{
		"language": "python", "difficulty": "EASY", "totalRounds": 1, "roundTimeLimitSec": 60,
	}, &created))

	cases := []struct {
		name   string
		id     uuid.UUID
		player uuid.UUID
		want   websocket.StatusCode
	}{
		{"outsider", created.ID, uuid.New(), NotParticipantError},
		{"unknown battle", uuid.New(), host, InvalidBattleIDError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := dialBattle(t, ts, tc.id, tc.player, battleSubprotocol)
			require.NoError(t, err)
			defer c.CloseNow()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, _, err = c.Read(ctx)
			assert.Equal(t, tc.want, websocket.CloseStatus(err))
		})
	}
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t, []string{"*", "app.example.com", "localhost:3000"},
		originPatterns([]string{"*", "https://app.example.com", " localhost:3000 ", ""}))
}

func TestCORSCredentialsOnlyForListedOrigins(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	preflight := func(origins []string, origin string) http.Header {
		h := NewRouter(&Server{Logger: logger, AllowedOrigins: origins})
		req := httptest.NewRequest(http.MethodOptions, "/battles", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Header()
	}

	h := preflight([]string{"https://app.example.com"}, "https://app.example.com")
	assert.Equal(t, "https://app.example.com", h.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", h.Get("Access-Control-Allow-Credentials"))

	h = preflight([]string{"https://app.example.com"}, "https://evil.example")
	assert.Empty(t, h.Get("Access-Control-Allow-Origin"))

	for _, origins := range [][]string{{"*"}, nil} {
		h = preflight(origins, "https://evil.example")
		assert.Empty(t, h.Get("Access-Control-Allow-Credentials"), "wildcard origins %v never carry cookies", origins)
	}
}
