package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"kinship/internal/assets"
	"kinship/internal/models"
)

var errDuplicateEdge = errors.New("duplicate edge")

type userRepoStub struct {
	getByIDFn      func(context.Context, uint) (*models.User, error)
	getByEmailFn   func(context.Context, string) (*models.User, error)
	createFn       func(context.Context, *models.User) error
	updateFn       func(context.Context, *models.User) error
	updateFieldsFn func(context.Context, uint, map[string]interface{}) error
	deleteFn       func(context.Context, uint) error
	listFn         func(context.Context, int, int) ([]models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return s.updateFieldsFn(ctx, id, fields)
}
func (s *userRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *userRepoStub) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.listFn(ctx, limit, offset)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:      func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByEmailFn:   func(context.Context, string) (*models.User, error) { return nil, nil },
		createFn:       func(context.Context, *models.User) error { return nil },
		updateFn:       func(context.Context, *models.User) error { return nil },
		updateFieldsFn: func(context.Context, uint, map[string]interface{}) error { return nil },
		deleteFn:       func(context.Context, uint) error { return nil },
		listFn:         func(context.Context, int, int) ([]models.User, error) { return nil, nil },
	}
}

type edgeKey struct {
	holder uint
	peer   uint
}

// fakeEdgeRepo is a map-backed in-memory edge repository. It lets tests
// assert on the exact edge pairs left behind by the state machine.
type fakeEdgeRepo struct {
	mu    sync.Mutex
	edges map[edgeKey]models.EdgeStatus
}

func newFakeEdgeRepo() *fakeEdgeRepo {
	return &fakeEdgeRepo{edges: make(map[edgeKey]models.EdgeStatus)}
}

// Create seeds a single edge directly, bypassing pair bookkeeping. Tests use
// it to build arbitrary pre-states, including asymmetric ones.
func (r *fakeEdgeRepo) Create(_ context.Context, edge *models.FriendEdge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges[edgeKey{edge.HolderID, edge.PeerID}] = edge.Status
	return nil
}

// CreatePair mirrors the real repository's transactional insert: if either
// side already exists, nothing is written.
func (r *fakeEdgeRepo) CreatePair(_ context.Context, first, second *models.FriendEdge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	firstKey := edgeKey{first.HolderID, first.PeerID}
	secondKey := edgeKey{second.HolderID, second.PeerID}
	if _, ok := r.edges[firstKey]; ok {
		return models.NewInternalError(errDuplicateEdge)
	}
	if _, ok := r.edges[secondKey]; ok {
		return models.NewInternalError(errDuplicateEdge)
	}
	r.edges[firstKey] = first.Status
	r.edges[secondKey] = second.Status
	return nil
}

func (r *fakeEdgeRepo) PromotePair(_ context.Context, holderA, holderB uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.edges[edgeKey{holderA, holderB}]; ok {
		r.edges[edgeKey{holderA, holderB}] = models.EdgeFriends
	}
	if _, ok := r.edges[edgeKey{holderB, holderA}]; ok {
		r.edges[edgeKey{holderB, holderA}] = models.EdgeFriends
	}
	return nil
}

func (r *fakeEdgeRepo) DeletePair(_ context.Context, holderA, holderB uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.edges, edgeKey{holderA, holderB})
	delete(r.edges, edgeKey{holderB, holderA})
	return nil
}

func (r *fakeEdgeRepo) Get(_ context.Context, holderID, peerID uint) (*models.FriendEdge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.edges[edgeKey{holderID, peerID}]
	if !ok {
		return nil, nil
	}
	return &models.FriendEdge{HolderID: holderID, PeerID: peerID, Status: status}, nil
}

func (r *fakeEdgeRepo) ListByHolder(_ context.Context, holderID uint) ([]*models.FriendEdge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.FriendEdge
	for k, status := range r.edges {
		if k.holder == holderID {
			out = append(out, &models.FriendEdge{HolderID: k.holder, PeerID: k.peer, Status: status})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out, nil
}

func (r *fakeEdgeRepo) FriendIDs(_ context.Context, holderID uint) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uint
	for k, status := range r.edges {
		if k.holder == holderID && status == models.EdgeFriends {
			ids = append(ids, k.peer)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *fakeEdgeRepo) DeleteReferencingPeer(_ context.Context, peerID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k := range r.edges {
		if k.peer == peerID {
			delete(r.edges, k)
			n++
		}
	}
	return n, nil
}

func (r *fakeEdgeRepo) DeleteHeldBy(_ context.Context, holderID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k := range r.edges {
		if k.holder == holderID {
			delete(r.edges, k)
			n++
		}
	}
	return n, nil
}

// isSymmetric reports whether every edge has its proper mirror.
func (r *fakeEdgeRepo) isSymmetric() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, status := range r.edges {
		mirror, ok := r.edges[edgeKey{k.peer, k.holder}]
		if !ok || mirror != status.Complement() {
			return false
		}
	}
	return true
}

func (r *fakeEdgeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.edges)
}

type postRepoStub struct {
	createFn         func(context.Context, *models.Post) error
	getByIDFn        func(context.Context, uint, uint) (*models.Post, error)
	listByAuthorsFn  func(context.Context, []uint, int, int, uint) ([]*models.Post, error)
	listByAuthorFn   func(context.Context, uint) ([]*models.Post, error)
	updateFn         func(context.Context, *models.Post) error
	updateFieldsFn   func(context.Context, uint, map[string]interface{}) error
	deleteFn         func(context.Context, uint) error
	deleteByAuthorFn func(context.Context, uint) (int64, error)
	idsByAuthorFn    func(context.Context, uint) ([]uint, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, currentUserID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, currentUserID)
}
func (s *postRepoStub) ListByAuthors(ctx context.Context, authorIDs []uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.listByAuthorsFn(ctx, authorIDs, limit, offset, currentUserID)
}
func (s *postRepoStub) ListByAuthor(ctx context.Context, authorID uint) ([]*models.Post, error) {
	return s.listByAuthorFn(ctx, authorID)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return s.updateFieldsFn(ctx, id, fields)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) DeleteByAuthor(ctx context.Context, authorID uint) (int64, error) {
	return s.deleteByAuthorFn(ctx, authorID)
}
func (s *postRepoStub) IDsByAuthor(ctx context.Context, authorID uint) ([]uint, error) {
	return s.idsByAuthorFn(ctx, authorID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:  func(context.Context, *models.Post) error { return nil },
		getByIDFn: func(_ context.Context, id, _ uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		listByAuthorsFn: func(context.Context, []uint, int, int, uint) ([]*models.Post, error) {
			return nil, nil
		},
		listByAuthorFn:   func(context.Context, uint) ([]*models.Post, error) { return nil, nil },
		updateFn:         func(context.Context, *models.Post) error { return nil },
		updateFieldsFn:   func(context.Context, uint, map[string]interface{}) error { return nil },
		deleteFn:         func(context.Context, uint) error { return nil },
		deleteByAuthorFn: func(context.Context, uint) (int64, error) { return 0, nil },
		idsByAuthorFn:    func(context.Context, uint) ([]uint, error) { return nil, nil },
	}
}

type commentRepoStub struct {
	createFn         func(context.Context, *models.Comment) error
	getByIDFn        func(context.Context, uint) (*models.Comment, error)
	listByPostFn     func(context.Context, uint) ([]*models.Comment, error)
	updateTextFn     func(context.Context, uint, string) error
	deleteFn         func(context.Context, uint) error
	deleteByPostFn   func(context.Context, uint) (int64, error)
	deleteByPostsFn  func(context.Context, []uint) (int64, error)
	deleteByAuthorFn func(context.Context, uint) (int64, error)
	idsByAuthorFn    func(context.Context, uint) ([]uint, error)
	idsByPostsFn     func(context.Context, []uint) ([]uint, error)
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) UpdateText(ctx context.Context, id uint, text string) error {
	return s.updateTextFn(ctx, id, text)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *commentRepoStub) DeleteByPost(ctx context.Context, postID uint) (int64, error) {
	return s.deleteByPostFn(ctx, postID)
}
func (s *commentRepoStub) DeleteByPosts(ctx context.Context, postIDs []uint) (int64, error) {
	return s.deleteByPostsFn(ctx, postIDs)
}
func (s *commentRepoStub) DeleteByAuthor(ctx context.Context, authorID uint) (int64, error) {
	return s.deleteByAuthorFn(ctx, authorID)
}
func (s *commentRepoStub) IDsByAuthor(ctx context.Context, authorID uint) ([]uint, error) {
	return s.idsByAuthorFn(ctx, authorID)
}
func (s *commentRepoStub) IDsByPosts(ctx context.Context, postIDs []uint) ([]uint, error) {
	return s.idsByPostsFn(ctx, postIDs)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:         func(context.Context, *models.Comment) error { return nil },
		getByIDFn:        func(_ context.Context, id uint) (*models.Comment, error) { return &models.Comment{ID: id}, nil },
		listByPostFn:     func(context.Context, uint) ([]*models.Comment, error) { return nil, nil },
		updateTextFn:     func(context.Context, uint, string) error { return nil },
		deleteFn:         func(context.Context, uint) error { return nil },
		deleteByPostFn:   func(context.Context, uint) (int64, error) { return 0, nil },
		deleteByPostsFn:  func(context.Context, []uint) (int64, error) { return 0, nil },
		deleteByAuthorFn: func(context.Context, uint) (int64, error) { return 0, nil },
		idsByAuthorFn:    func(context.Context, uint) ([]uint, error) { return nil, nil },
		idsByPostsFn:     func(context.Context, []uint) ([]uint, error) { return nil, nil },
	}
}

type likeRepoStub struct {
	createFn           func(context.Context, *models.Like) error
	deleteFn           func(context.Context, uint) error
	getForPostFn       func(context.Context, uint, uint) (*models.Like, error)
	getForCommentFn    func(context.Context, uint, uint) (*models.Like, error)
	deleteByUserFn     func(context.Context, uint) (int64, error)
	deleteByCommentsFn func(context.Context, []uint) (int64, error)
	deleteByPostsFn    func(context.Context, []uint) (int64, error)
}

func (s *likeRepoStub) Create(ctx context.Context, like *models.Like) error {
	return s.createFn(ctx, like)
}
func (s *likeRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *likeRepoStub) GetForPost(ctx context.Context, userID, postID uint) (*models.Like, error) {
	return s.getForPostFn(ctx, userID, postID)
}
func (s *likeRepoStub) GetForComment(ctx context.Context, userID, commentID uint) (*models.Like, error) {
	return s.getForCommentFn(ctx, userID, commentID)
}
func (s *likeRepoStub) DeleteByUser(ctx context.Context, userID uint) (int64, error) {
	return s.deleteByUserFn(ctx, userID)
}
func (s *likeRepoStub) DeleteByComments(ctx context.Context, commentIDs []uint) (int64, error) {
	return s.deleteByCommentsFn(ctx, commentIDs)
}
func (s *likeRepoStub) DeleteByPosts(ctx context.Context, postIDs []uint) (int64, error) {
	return s.deleteByPostsFn(ctx, postIDs)
}

func noopLikeRepo() *likeRepoStub {
	return &likeRepoStub{
		createFn:           func(context.Context, *models.Like) error { return nil },
		deleteFn:           func(context.Context, uint) error { return nil },
		getForPostFn:       func(context.Context, uint, uint) (*models.Like, error) { return nil, nil },
		getForCommentFn:    func(context.Context, uint, uint) (*models.Like, error) { return nil, nil },
		deleteByUserFn:     func(context.Context, uint) (int64, error) { return 0, nil },
		deleteByCommentsFn: func(context.Context, []uint) (int64, error) { return 0, nil },
		deleteByPostsFn:    func(context.Context, []uint) (int64, error) { return 0, nil },
	}
}

// fakeAssetStore records destroyed handles for asset lifecycle assertions.
type fakeAssetStore struct {
	mu        sync.Mutex
	saved     []string
	destroyed []string
	destroyFn func(context.Context, string) error
}

var _ assets.Store = (*fakeAssetStore)(nil)

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{}
}

func (s *fakeAssetStore) Save(_ context.Context, in assets.SaveInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle := "hnd-" + in.Filename
	s.saved = append(s.saved, handle)
	return handle, nil
}

func (s *fakeAssetStore) Destroy(ctx context.Context, handle string) error {
	if s.destroyFn != nil {
		if err := s.destroyFn(ctx, handle); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = append(s.destroyed, handle)
	return nil
}

func (s *fakeAssetStore) URL(handle string) string {
	return "/media/a/" + handle + "/master.jpg"
}

func (s *fakeAssetStore) ResolvePath(handle string) (string, error) {
	return "/tmp/" + handle, nil
}

func (s *fakeAssetStore) destroyedHandles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.destroyed))
	copy(out, s.destroyed)
	return out
}
