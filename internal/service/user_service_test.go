package service

import (
	"context"
	"testing"
	"time"

	"kinship/internal/models"

	"golang.org/x/crypto/bcrypt"
)

func newUserService(users *userRepoStub, store *fakeAssetStore) *UserService {
	if users == nil {
		users = noopUserRepo()
	}
	if store == nil {
		store = newFakeAssetStore()
	}
	return NewUserService(users, NewAssetLifecycle(store, discardLogger()))
}

const knownPassword = "OldSecret12!"

func profileUser(id uint) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(knownPassword), bcrypt.MinCost)
	return &models.User{
		ID:              id,
		Email:           "ada@e.com",
		FirstName:       "Ada",
		LastName:        "West",
		Password:        string(hash),
		ProfileImage:    "prof-hnd",
		BackgroundImage: "bg-hnd",
	}
}

func TestUserServiceUpdateProfileFields(t *testing.T) {
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) { return profileUser(id), nil }
	var committed map[string]interface{}
	users.updateFieldsFn = func(_ context.Context, _ uint, fields map[string]interface{}) error {
		committed = fields
		return nil
	}
	svc := newUserService(users, nil)

	_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{
		UserID:    1,
		FirstName: "Adeline",
		Image:     KeepAsset,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if committed["first_name"] != "Adeline" {
		t.Fatalf("committed %#v", committed)
	}
	if _, ok := committed["email"]; ok {
		t.Fatal("email committed without being changed")
	}
}

func TestUserServiceUpdateProfileBadName(t *testing.T) {
	svc := newUserService(nil, nil)
	_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: 1, FirstName: "Ada99", Image: KeepAsset})
	wantAppError(t, err, models.CodeValidation)
}

func TestUserServiceUpdateEmailTaken(t *testing.T) {
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) { return profileUser(id), nil }
	users.getByEmailFn = func(context.Context, string) (*models.User, error) {
		return &models.User{ID: 99}, nil
	}
	svc := newUserService(users, nil)

	_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: 1, Email: "taken@e.com", Image: KeepAsset})
	wantAppError(t, err, models.CodeValidation)
}

func TestUserServiceUpdatePassword(t *testing.T) {
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) { return profileUser(id), nil }
	var committed map[string]interface{}
	users.updateFieldsFn = func(_ context.Context, _ uint, fields map[string]interface{}) error {
		committed = fields
		return nil
	}
	svc := newUserService(users, nil)

	const newPass = "FreshSecret12!"
	_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{
		UserID:          1,
		CurrentPassword: knownPassword,
		Password:        newPass,
		PasswordConfirm: newPass,
		Image:           KeepAsset,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	hashed, _ := committed["password"].(string)
	if hashed == "" || hashed == newPass {
		t.Fatalf("password stored as %q", hashed)
	}
	if bcrypt.CompareHashAndPassword([]byte(hashed), []byte(newPass)) != nil {
		t.Fatal("stored hash does not verify")
	}
}

func TestUserServiceUpdatePasswordMismatch(t *testing.T) {
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) { return profileUser(id), nil }
	svc := newUserService(users, nil)
	_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{
		UserID:          1,
		CurrentPassword: knownPassword,
		Password:        "FreshSecret12!",
		PasswordConfirm: "OtherSecret12!",
		Image:           KeepAsset,
	})
	wantAppError(t, err, models.CodeValidation)
}

// A password change must prove knowledge of the one it replaces.
func TestUserServiceUpdatePasswordWrongCurrent(t *testing.T) {
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) { return profileUser(id), nil }
	committed := false
	users.updateFieldsFn = func(context.Context, uint, map[string]interface{}) error {
		committed = true
		return nil
	}
	svc := newUserService(users, nil)

	for _, current := range []string{"", "WrongSecret12!"} {
		_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{
			UserID:          1,
			CurrentPassword: current,
			Password:        "FreshSecret12!",
			PasswordConfirm: "FreshSecret12!",
			Image:           KeepAsset,
		})
		wantAppError(t, err, models.CodeValidation)
	}
	if committed {
		t.Fatal("password change committed without the original password")
	}
}

func TestUserServiceReplaceProfileImage(t *testing.T) {
	store := newFakeAssetStore()
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) { return profileUser(id), nil }
	var committed map[string]interface{}
	users.updateFieldsFn = func(_ context.Context, _ uint, fields map[string]interface{}) error {
		committed = fields
		return nil
	}
	svc := newUserService(users, store)

	_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: 1, Image: "new-hnd"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if committed["profile_image"] != "new-hnd" {
		t.Fatalf("committed %#v", committed)
	}
	got := waitForDestroyed(t, store, 1)
	if got[0] != "prof-hnd" {
		t.Fatalf("destroyed %v", got)
	}
}

func TestUserServiceReplaceBackgroundImage(t *testing.T) {
	store := newFakeAssetStore()
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) { return profileUser(id), nil }
	var committed map[string]interface{}
	users.updateFieldsFn = func(_ context.Context, _ uint, fields map[string]interface{}) error {
		committed = fields
		return nil
	}
	svc := newUserService(users, store)

	_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: 1, Image: "new-bg", IsBackground: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if committed["background_image"] != "new-bg" {
		t.Fatalf("committed %#v", committed)
	}
	if _, ok := committed["profile_image"]; ok {
		t.Fatal("profile image touched by a background update")
	}
	got := waitForDestroyed(t, store, 1)
	if got[0] != "bg-hnd" {
		t.Fatalf("destroyed %v", got)
	}
}

func TestUserServiceKeepImageDoesNotDestroy(t *testing.T) {
	store := newFakeAssetStore()
	users := noopUserRepo()
	users.getByIDFn = func(_ context.Context, id uint) (*models.User, error) { return profileUser(id), nil }
	svc := newUserService(users, store)

	_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: 1, LastName: "North", Image: KeepAsset})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(store.destroyedHandles()); n != 0 {
		t.Fatalf("expected no destroys, got %d", n)
	}
}
