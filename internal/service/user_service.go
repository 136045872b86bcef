package service

import (
	"context"

	"kinship/internal/cache"
	"kinship/internal/models"
	"kinship/internal/repository"
	"kinship/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	userRepo  repository.UserRepository
	lifecycle *AssetLifecycle
}

type UpdateProfileInput struct {
	UserID    uint
	FirstName string
	LastName  string
	Email     string
	// Changing Password requires CurrentPassword to match the stored hash.
	CurrentPassword string
	Password        string
	PasswordConfirm string
	// Image is a replacement asset handle, KeepAsset to retain the current
	// one, or empty to clear it. IsBackground selects which of the two
	// profile slots it applies to.
	Image        string
	IsBackground bool
}

func NewUserService(userRepo repository.UserRepository, lifecycle *AssetLifecycle) *UserService {
	return &UserService{userRepo: userRepo, lifecycle: lifecycle}
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// UpdateProfile applies a partial profile update. Empty fields are left
// untouched; a changed email must not collide with another account; the
// displaced profile asset is destroyed only after the row has committed.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})

	if in.FirstName != "" && in.FirstName != user.FirstName {
		if err := validation.ValidateName(in.FirstName); err != nil {
			return nil, models.NewFieldValidationError("first_name", err.Error())
		}
		fields["first_name"] = in.FirstName
	}
	if in.LastName != "" && in.LastName != user.LastName {
		if err := validation.ValidateName(in.LastName); err != nil {
			return nil, models.NewFieldValidationError("last_name", err.Error())
		}
		fields["last_name"] = in.LastName
	}

	if in.Email != "" && in.Email != user.Email {
		if err := validation.ValidateEmail(in.Email); err != nil {
			return nil, models.NewFieldValidationError("email", err.Error())
		}
		existing, err := s.userRepo.GetByEmail(ctx, in.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != user.ID {
			return nil, models.NewFieldValidationError("email", "email is already in use")
		}
		fields["email"] = in.Email
	}

	if in.Password != "" {
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.CurrentPassword)) != nil {
			return nil, models.NewFieldValidationError("current_password", "incorrect original password")
		}
		if err := validation.ValidateConfirmation(in.Password, in.PasswordConfirm); err != nil {
			return nil, models.NewFieldValidationError("password_confirm", err.Error())
		}
		if err := validation.ValidatePassword(in.Password); err != nil {
			return nil, models.NewFieldValidationError("password", err.Error())
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		fields["password"] = string(hashed)
	}

	current := user.ProfileImage
	column := "profile_image"
	if in.IsBackground {
		current = user.BackgroundImage
		column = "background_image"
	}
	resolved, obsolete := s.lifecycle.PlanReplacement(current, in.Image)
	if resolved != current {
		fields[column] = resolved
	}

	if len(fields) > 0 {
		if err := s.userRepo.UpdateFields(ctx, user.ID, fields); err != nil {
			return nil, err
		}
	}

	// The row is committed; the displaced asset may now be destroyed.
	s.lifecycle.CommitReplacement(obsolete)

	cache.InvalidateUser(ctx, user.ID)
	return s.userRepo.GetByID(ctx, user.ID)
}
