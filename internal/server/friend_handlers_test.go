package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"kinship/internal/models"
	"kinship/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// userDirectoryStub serves the fixed set of users handler tests need.
type userDirectoryStub struct {
	users map[uint]*models.User
}

func (s *userDirectoryStub) GetByID(_ context.Context, id uint) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, models.NewNotFoundError("User", id)
}
func (s *userDirectoryStub) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, nil
}
func (s *userDirectoryStub) Create(context.Context, *models.User) error { return nil }
func (s *userDirectoryStub) Update(context.Context, *models.User) error { return nil }
func (s *userDirectoryStub) UpdateFields(context.Context, uint, map[string]interface{}) error {
	return nil
}
func (s *userDirectoryStub) Delete(context.Context, uint) error { return nil }
func (s *userDirectoryStub) List(context.Context, int, int) ([]models.User, error) {
	return nil, nil
}

// edgeListStub returns a canned edge list per holder; writes are unused here.
type edgeListStub struct {
	byHolder map[uint][]*models.FriendEdge
}

func (s *edgeListStub) CreatePair(context.Context, *models.FriendEdge, *models.FriendEdge) error {
	return nil
}
func (s *edgeListStub) PromotePair(context.Context, uint, uint) error { return nil }
func (s *edgeListStub) DeletePair(context.Context, uint, uint) error  { return nil }
func (s *edgeListStub) Get(context.Context, uint, uint) (*models.FriendEdge, error) {
	return nil, nil
}
func (s *edgeListStub) ListByHolder(_ context.Context, holderID uint) ([]*models.FriendEdge, error) {
	return s.byHolder[holderID], nil
}
func (s *edgeListStub) FriendIDs(context.Context, uint) ([]uint, error) { return nil, nil }
func (s *edgeListStub) DeleteReferencingPeer(context.Context, uint) (int64, error) {
	return 0, nil
}
func (s *edgeListStub) DeleteHeldBy(context.Context, uint) (int64, error) { return 0, nil }

func newFriendsTestApp(t *testing.T) *fiber.App {
	t.Helper()

	users := &userDirectoryStub{users: map[uint]*models.User{
		5: {ID: 5, FirstName: "Ada", LastName: "West"},
		7: {ID: 7, FirstName: "Bo", LastName: "Till"},
	}}
	edges := &edgeListStub{byHolder: map[uint][]*models.FriendEdge{
		5: {
			{HolderID: 5, PeerID: 7, Status: models.EdgeFriends, Peer: models.User{ID: 7, FirstName: "Bo"}},
			{HolderID: 5, PeerID: 9, Status: models.EdgeOutgoing, Peer: models.User{ID: 9}},
		},
	}}

	s := &Server{
		userRepo:      users,
		friendService: service.NewFriendService(edges, users),
	}
	app := fiber.New()
	app.Get("/api/users/:id/friends", s.GetUserFriends)
	return app
}

func TestGetUserFriends_ListsAcceptedOnly(t *testing.T) {
	app := newFriendsTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users/5/friends", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var friends []models.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&friends))
	require.Len(t, friends, 1)
	assert.Equal(t, uint(7), friends[0].ID)
}

func TestGetUserFriends_EmptyForFriendlessUser(t *testing.T) {
	app := newFriendsTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users/7/friends", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var friends []models.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&friends))
	assert.Empty(t, friends)
}

func TestGetUserFriends_UnknownUser(t *testing.T) {
	app := newFriendsTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users/999/friends", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetUserFriends_InvalidID(t *testing.T) {
	app := newFriendsTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users/abc/friends", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
