package sessions

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

func TestInMemorySessionService(t *testing.T) {
	testSessionService(t, NewInMemorySessionService(time.Hour))
}

func TestFileSessionService(t *testing.T) {
	service, err := NewFileSessionService(t.TempDir(), time.Hour)
	require.NoError(t, err)
	testSessionService(t, service)
}

func TestRedisSessionService(t *testing.T) {
	addr := os.Getenv("SHOPPER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SHOPPER_TEST_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})
	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	service := NewRedisSessionService(rdb, time.Hour)
	defer service.Close(context.Background())
	testSessionService(t, service)
}

func testSessionService(t *testing.T, service core.SessionService) {
	t.Helper()
	ctx := context.Background()
	const appName, userID = "shopper_agent", "user_1"

	session, err := service.CreateSession(ctx, &core.CreateSessionRequest{
		AppName: appName,
		UserID:  userID,
		State:   map[string]any{"key1": "value1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "value1", session.State["key1"])

	id := "fixed_id"
	_, err = service.CreateSession(ctx, &core.CreateSessionRequest{AppName: appName, UserID: userID, SessionID: &id})
	require.NoError(t, err)
	_, err = service.CreateSession(ctx, &core.CreateSessionRequest{AppName: appName, UserID: userID, SessionID: &id})
	assert.ErrorIs(t, err, ErrSessionExists)

	get := &core.GetSessionRequest{AppName: appName, UserID: userID, SessionID: session.ID}
	got, err := service.GetSession(ctx, get)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, session.ID, got.ID)

	// A returned session is a copy.
	got.State["key1"] = "mutated"
	again, err := service.GetSession(ctx, get)
	require.NoError(t, err)
	assert.Equal(t, "value1", again.State["key1"])

	// State written through a StateContext survives the backend round trip.
	sc := core.NewStateContext(again)
	sc.SetActiveStoreID("cafe_con_alma")
	sc.SetCheckoutID("cafe_con_alma", "chk_123")
	sc.SetPaymentState(&core.PaymentState{Instrument: core.PaymentInstrument{ID: "instr_1", Token: "tok"}})
	require.NoError(t, service.UpdateSessionState(ctx, appName, userID, session.ID, again.State))

	reloaded, err := service.GetSession(ctx, get)
	require.NoError(t, err)
	rc := core.NewStateContext(reloaded)
	active, ok := rc.ActiveStoreID()
	assert.True(t, ok)
	assert.Equal(t, "cafe_con_alma", active)
	assert.Equal(t, "chk_123", rc.CheckoutID("cafe_con_alma"))
	payment, ok := rc.PaymentState()
	require.True(t, ok)
	assert.Equal(t, "instr_1", payment.Instrument.ID)

	err = service.UpdateSessionState(ctx, appName, userID, "missing", map[string]any{})
	assert.ErrorIs(t, err, core.ErrNotFound)

	list, err := service.ListSessions(ctx, &core.ListSessionsRequest{AppName: appName, UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, 2, list.TotalCount)
	assert.Equal(t, session.ID, list.Sessions[0].ID)

	other, err := service.ListSessions(ctx, &core.ListSessionsRequest{AppName: appName, UserID: "someone_else"})
	require.NoError(t, err)
	assert.Empty(t, other.Sessions)

	require.NoError(t, service.DeleteSession(ctx, &core.DeleteSessionRequest{AppName: appName, UserID: userID, SessionID: session.ID}))
	gone, err := service.GetSession(ctx, get)
	require.NoError(t, err)
	assert.Nil(t, gone)

	list, err = service.ListSessions(ctx, &core.ListSessionsRequest{AppName: appName, UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, 1, list.TotalCount)
}

func TestCreateRejectsIncompleteRequest(t *testing.T) {
	_, err := NewInMemorySessionService(0).CreateSession(context.Background(), &core.CreateSessionRequest{AppName: "a"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestInMemoryTTL(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	service := NewInMemorySessionService(time.Minute)
	service.now = func() time.Time { return clock }

	id := "s1"
	session, err := service.CreateSession(ctx, &core.CreateSessionRequest{AppName: "a", UserID: "u", SessionID: &id})
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)
	got, err := service.GetSession(ctx, &core.GetSessionRequest{AppName: "a", UserID: "u", SessionID: session.ID})
	require.NoError(t, err)
	assert.Nil(t, got)

	// An expired id can be reused.
	_, err = service.CreateSession(ctx, &core.CreateSessionRequest{AppName: "a", UserID: "u", SessionID: &id})
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)
	n, err := service.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFileRejectsPathTraversal(t *testing.T) {
	service, err := NewFileSessionService(t.TempDir(), 0)
	require.NoError(t, err)

	id := "../escape"
	_, err = service.CreateSession(context.Background(), &core.CreateSessionRequest{AppName: "a", UserID: "u", SessionID: &id})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestNewFromURI(t *testing.T) {
	ctx := context.Background()

	svc, err := NewFromURI(ctx, "memory://", time.Hour)
	require.NoError(t, err)
	assert.IsType(t, &InMemorySessionService{}, svc)

	svc, err = NewFromURI(ctx, "file://"+t.TempDir(), time.Hour)
	require.NoError(t, err)
	assert.IsType(t, &FileSessionService{}, svc)

	_, err = NewFromURI(ctx, "sqlite://x.db", time.Hour)
	assert.Error(t, err)

	_, err = NewFromURI(ctx, "file://", time.Hour)
	assert.Error(t, err)

	_, err = NewFromURI(ctx, "redis://%zz", time.Hour)
	assert.Error(t, err)
}
