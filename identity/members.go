package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/clientbook/models"
	"github.com/yourusername/clientbook/store"
	"golang.org/x/crypto/bcrypt"
)

type MemberInput struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name" binding:"max=255"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"omitempty,oneof=admin user"`
}

// CreateMember adds a profile to an existing organization.
func (s *Service) CreateMember(ctx context.Context, orgID string, in MemberInput) (*models.Profile, error) {
	email, err := validEmail(in.Email)
	if err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		return nil, &store.ValidationError{Field: "role", Message: "must be admin or user"}
	}
	hash, err := s.hashPassword("password", in.Password)
	if err != nil {
		return nil, err
	}

	profile := &models.Profile{
		OrgID:        orgID,
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.store.Profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"org_id": orgID, "user_id": profile.ID, "role": role}).Info("member added")
	return profile, nil
}

func (s *Service) ListMembers(ctx context.Context, orgID string) ([]models.Profile, error) {
	return s.store.Profiles.ListByOrg(ctx, orgID)
}

type ProfileInput struct {
	FullName *string `json:"full_name" binding:"omitempty,max=255"`
	Email    *string `json:"email" binding:"omitempty,email"`
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.Profile, error) {
	fields := map[string]interface{}{}
	if in.FullName != nil {
		fields["full_name"] = strings.TrimSpace(*in.FullName)
	}
	if in.Email != nil {
		email, err := validEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		existing, err := s.store.Profiles.GetByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != userID:
			return nil, ErrEmailTaken
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
		fields["email"] = email
	}
	profile, err := s.store.Profiles.Update(ctx, userID, fields)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrEmailTaken
	}
	return profile, err
}

type PasswordInput struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (s *Service) ChangePassword(ctx context.Context, userID string, in PasswordInput) error {
	profile, err := s.store.Profiles.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(in.CurrentPassword)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := s.hashPassword("new_password", in.NewPassword)
	if err != nil {
		return err
	}
	_, err = s.store.Profiles.Update(ctx, userID, map[string]interface{}{"password_hash": hash})
	return err
}
