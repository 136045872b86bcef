package service

import (
	"context"
	"errors"
	"testing"

	"kinship/internal/models"
)

func wantAppError(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != code {
		t.Fatalf("expected %s app error, got %#v", code, err)
	}
}

func TestFriendServiceProposeSelf(t *testing.T) {
	svc := NewFriendService(newFakeEdgeRepo(), noopUserRepo())
	err := svc.Propose(context.Background(), 3, 3)
	wantAppError(t, err, models.CodeSelfReference)
}

func TestFriendServiceProposeUnknownTarget(t *testing.T) {
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) {
		return nil, models.NewNotFoundError("User", id)
	}
	svc := NewFriendService(newFakeEdgeRepo(), users)
	err := svc.Propose(context.Background(), 1, 2)
	wantAppError(t, err, models.CodeNotFound)
}

func TestFriendServiceProposeWritesMirroredPair(t *testing.T) {
	edges := newFakeEdgeRepo()
	svc := NewFriendService(edges, noopUserRepo())

	if err := svc.Propose(context.Background(), 1, 2); err != nil {
		t.Fatalf("propose: %v", err)
	}

	if !edges.isSymmetric() {
		t.Fatal("edge pair is not mirrored after propose")
	}
	actorEdge, _ := edges.Get(context.Background(), 1, 2)
	if actorEdge == nil || actorEdge.Status != models.EdgeOutgoing {
		t.Fatalf("expected outgoing edge on actor, got %#v", actorEdge)
	}
	targetEdge, _ := edges.Get(context.Background(), 2, 1)
	if targetEdge == nil || targetEdge.Status != models.EdgeIncoming {
		t.Fatalf("expected incoming edge on target, got %#v", targetEdge)
	}
}

func TestFriendServiceProposeDuplicate(t *testing.T) {
	edges := newFakeEdgeRepo()
	svc := NewFriendService(edges, noopUserRepo())
	ctx := context.Background()

	if err := svc.Propose(ctx, 1, 2); err != nil {
		t.Fatalf("propose: %v", err)
	}

	// Repeat in the same direction, the reverse direction, and after
	// acceptance; all are blocked by the existing pair.
	wantAppError(t, svc.Propose(ctx, 1, 2), models.CodeAlreadyRelated)
	wantAppError(t, svc.Propose(ctx, 2, 1), models.CodeAlreadyRelated)

	if err := svc.Respond(ctx, 2, 1, true); err != nil {
		t.Fatalf("respond: %v", err)
	}
	wantAppError(t, svc.Propose(ctx, 1, 2), models.CodeAlreadyRelated)
}

func TestFriendServiceRespondAccept(t *testing.T) {
	edges := newFakeEdgeRepo()
	svc := NewFriendService(edges, noopUserRepo())
	ctx := context.Background()

	if err := svc.Propose(ctx, 1, 2); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := svc.Respond(ctx, 2, 1, true); err != nil {
		t.Fatalf("respond: %v", err)
	}

	if !edges.isSymmetric() {
		t.Fatal("edge pair is not mirrored after accept")
	}
	for _, holder := range []uint{1, 2} {
		ids, _ := edges.FriendIDs(ctx, holder)
		if len(ids) != 1 {
			t.Fatalf("holder %d: expected one friend, got %v", holder, ids)
		}
	}
}

func TestFriendServiceRespondAcceptFromRequesterSide(t *testing.T) {
	// The holder of the outgoing edge may also complete the handshake.
	edges := newFakeEdgeRepo()
	svc := NewFriendService(edges, noopUserRepo())
	ctx := context.Background()

	if err := svc.Propose(ctx, 1, 2); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := svc.Respond(ctx, 1, 2, true); err != nil {
		t.Fatalf("respond from requester side: %v", err)
	}
	ids, _ := edges.FriendIDs(ctx, 2)
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected user 2 to befriend user 1, got %v", ids)
	}
}

func TestFriendServiceRespondReject(t *testing.T) {
	edges := newFakeEdgeRepo()
	svc := NewFriendService(edges, noopUserRepo())
	ctx := context.Background()

	if err := svc.Propose(ctx, 1, 2); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := svc.Respond(ctx, 2, 1, false); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if edges.count() != 0 {
		t.Fatalf("expected no edges after reject, have %d", edges.count())
	}
}

func TestFriendServiceRespondNoRequest(t *testing.T) {
	svc := NewFriendService(newFakeEdgeRepo(), noopUserRepo())
	err := svc.Respond(context.Background(), 2, 1, true)
	wantAppError(t, err, models.CodeNoSuchRequest)
}

func TestFriendServiceRespondAlreadyFriends(t *testing.T) {
	edges := newFakeEdgeRepo()
	svc := NewFriendService(edges, noopUserRepo())
	ctx := context.Background()

	if err := svc.Propose(ctx, 1, 2); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := svc.Respond(ctx, 2, 1, true); err != nil {
		t.Fatalf("respond: %v", err)
	}
	wantAppError(t, svc.Respond(ctx, 2, 1, true), models.CodeAlreadyFriends)
}

func TestFriendServiceRemove(t *testing.T) {
	edges := newFakeEdgeRepo()
	svc := NewFriendService(edges, noopUserRepo())
	ctx := context.Background()

	if err := svc.Propose(ctx, 1, 2); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := svc.Respond(ctx, 2, 1, true); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if err := svc.Remove(ctx, 1, 2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if edges.count() != 0 {
		t.Fatalf("expected no edges after remove, have %d", edges.count())
	}

	// A fresh request is possible after removal.
	if err := svc.Propose(ctx, 2, 1); err != nil {
		t.Fatalf("propose after remove: %v", err)
	}
}

// Remove is not limited to established friendships: either side of a pending
// request can use it to cancel, clearing both edges.
func TestFriendServiceRemoveCancelsPendingRequest(t *testing.T) {
	edges := newFakeEdgeRepo()
	svc := NewFriendService(edges, noopUserRepo())
	ctx := context.Background()

	// Sender cancels their own outgoing request.
	if err := svc.Propose(ctx, 1, 2); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := svc.Remove(ctx, 1, 2); err != nil {
		t.Fatalf("cancel outgoing: %v", err)
	}
	if edges.count() != 0 {
		t.Fatalf("expected no edges after cancel, have %d", edges.count())
	}

	// Recipient clears the incoming request the same way.
	if err := svc.Propose(ctx, 1, 2); err != nil {
		t.Fatalf("re-propose: %v", err)
	}
	if err := svc.Remove(ctx, 2, 1); err != nil {
		t.Fatalf("cancel incoming: %v", err)
	}
	if edges.count() != 0 {
		t.Fatalf("expected no edges after recipient cancel, have %d", edges.count())
	}

	// A cancelled request can be re-sent.
	if err := svc.Propose(ctx, 1, 2); err != nil {
		t.Fatalf("propose after cancel: %v", err)
	}
}

func TestFriendServiceRemoveUnknownPeer(t *testing.T) {
	svc := NewFriendService(newFakeEdgeRepo(), noopUserRepo())
	wantAppError(t, svc.Remove(context.Background(), 1, 9), models.CodeNoSuchRelation)
}

// A stale one-sided edge must not let Propose write half a pair: the repo
// rejects the duplicate side and the store stays exactly as it was.
func TestFriendServiceProposeLeavesNoHalfPair(t *testing.T) {
	edges := newFakeEdgeRepo()
	svc := NewFriendService(edges, noopUserRepo())
	ctx := context.Background()

	_ = edges.Create(ctx, &models.FriendEdge{HolderID: 1, PeerID: 2, Status: models.EdgeOutgoing})

	if err := svc.Propose(ctx, 1, 2); err == nil {
		t.Fatal("expected propose over a stale edge to fail")
	}
	if edges.count() != 1 {
		t.Fatalf("expected the store untouched, have %d edges", edges.count())
	}
}

func TestFriendServiceStatus(t *testing.T) {
	edges := newFakeEdgeRepo()
	svc := NewFriendService(edges, noopUserRepo())
	ctx := context.Background()

	status, err := svc.Status(ctx, 1, 2)
	if err != nil || status != "none" {
		t.Fatalf("expected none, got %q err %v", status, err)
	}

	if err := svc.Propose(ctx, 1, 2); err != nil {
		t.Fatalf("propose: %v", err)
	}
	status, _ = svc.Status(ctx, 1, 2)
	if status != "outgoing" {
		t.Fatalf("expected outgoing, got %q", status)
	}
	status, _ = svc.Status(ctx, 2, 1)
	if status != "incoming" {
		t.Fatalf("expected incoming, got %q", status)
	}

	if err := svc.Respond(ctx, 2, 1, true); err != nil {
		t.Fatalf("respond: %v", err)
	}
	status, _ = svc.Status(ctx, 1, 2)
	if status != "friends" {
		t.Fatalf("expected friends, got %q", status)
	}
}

func TestFriendServiceSymmetryAcrossLifecycle(t *testing.T) {
	// Symmetry must hold after every state transition in the lifecycle.
	edges := newFakeEdgeRepo()
	svc := NewFriendService(edges, noopUserRepo())
	ctx := context.Background()

	steps := []struct {
		name string
		run  func() error
	}{
		{"propose", func() error { return svc.Propose(ctx, 1, 2) }},
		{"accept", func() error { return svc.Respond(ctx, 2, 1, true) }},
		{"remove", func() error { return svc.Remove(ctx, 2, 1) }},
		{"repropose", func() error { return svc.Propose(ctx, 2, 1) }},
		{"reject", func() error { return svc.Respond(ctx, 1, 2, false) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if !edges.isSymmetric() {
			t.Fatalf("edges asymmetric after %s", step.name)
		}
	}
}
