package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/npezzotti/go-dm/internal/auth"
	"github.com/npezzotti/go-dm/internal/config"
	"github.com/npezzotti/go-dm/internal/database"
	"github.com/npezzotti/go-dm/internal/objectstore"
	"github.com/npezzotti/go-dm/internal/server"
	"github.com/npezzotti/go-dm/internal/stats"
	"github.com/npezzotti/go-dm/internal/testutil"
	"github.com/npezzotti/go-dm/internal/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testKey = []byte("test-signing-key")
	alice   = types.User{Id: "u-alice", Username: "alice"}
	bob     = types.User{Id: "u-bob", Username: "bob"}
	carol   = types.User{Id: "u-carol", Username: "carol"}
)

type testApp struct {
	*App
	db      *database.MockRepository
	objects *objectstore.MockStore
	gk      *auth.Gatekeeper
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db := &database.MockRepository{}
	objects := &objectstore.MockStore{}
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return()
	su.On("Incr", mock.Anything).Return().Maybe()
	su.On("Decr", mock.Anything).Return().Maybe()

	logger := testutil.TestLogger(t)
	cs := server.NewChatServer(logger, db, objects, su)
	gk := auth.NewGatekeeper(testKey, db)
	cfg := &config.Config{
		ServerAddr:     "localhost:8080",
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	return &testApp{
		App:     NewApp(http.NewServeMux(), logger, cs, db, objects, gk, cfg),
		db:      db,
		objects: objects,
		gk:      gk,
	}
}

// tokenFor issues a token for user and makes the store resolve it.
func (a *testApp) tokenFor(t *testing.T, user types.User) string {
	t.Helper()

	a.db.On("GetUserById", mock.Anything, user.Id).
		Return(database.User{Id: user.Id, Username: user.Username}, nil).Maybe()
	token, err := a.gk.IssueToken(user.Id, time.Minute)
	require.NoError(t, err)
	return token
}

func directConversation(id string, users ...types.User) database.Conversation {
	participants := make([]string, 0, len(users))
	for _, u := range users {
		participants = append(participants, u.Id)
	}
	return database.Conversation{Id: id, Kind: database.ConversationDirect, Participants: participants}
}
