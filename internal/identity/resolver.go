package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/models"
)

// Info describes one verified external identity (Google, Apple, MSFT,
// DeepSeek, local, ...) as produced by the auth layer.
type Info struct {
	Provider    string `json:"provider" binding:"required"`
	ProviderSub string `json:"provider_sub" binding:"required"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve maps an external identity to the internal User, creating both the
// User and the UserIdentity atomically when the (provider, provider_sub)
// pair has never been seen. Email/display-name fields are backfilled only
// when previously empty.
func (r *Resolver) Resolve(ctx context.Context, info Info) (*models.User, error) {
	if info.Provider == "" || info.ProviderSub == "" {
		return nil, errors.New("identity: provider and provider_sub are required")
	}

	var user models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		var ui models.UserIdentity
		err := tx.Where("provider = ? AND provider_sub = ?", info.Provider, info.ProviderSub).
			First(&ui).Error
		switch {
		case err == nil:
			ui.LastUsedAt = now
			if info.Email != "" && ui.Email == nil {
				ui.Email = &info.Email
			}
			if info.DisplayName != "" && ui.DisplayName == nil {
				ui.DisplayName = &info.DisplayName
			}
			if err := tx.Save(&ui).Error; err != nil {
				return err
			}

			// Explicit primary-key fetch; never a relationship traversal.
			if err := tx.First(&user, "id = ?", ui.UserID).Error; err != nil {
				return err
			}
			if info.Email != "" && user.Email == nil {
				user.Email = &info.Email
			}
			if info.DisplayName != "" && user.DisplayName == "" {
				user.DisplayName = info.DisplayName
			}
			user.LastLoginAt = &now
			return tx.Save(&user).Error

		case errors.Is(err, gorm.ErrRecordNotFound):
			// First touch for this (provider, provider_sub). If the email is
			// already owned by a User, link the identity to it instead of
			// creating a duplicate account.
			found := false
			if info.Email != "" {
				if err := tx.Where("email = ?", info.Email).First(&user).Error; err == nil {
					found = true
				} else if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
			}

			if !found {
				displayName := info.DisplayName
				if displayName == "" {
					displayName = info.ProviderSub
				}
				user = models.User{
					ExternalID:  fmt.Sprintf("%s:%s", info.Provider, info.ProviderSub),
					DisplayName: displayName,
					LastLoginAt: &now,
				}
				if info.Email != "" {
					user.Email = &info.Email
				}
				// Create flushes the row so its id is available for the
				// identity reference below; both commit together.
				if err := tx.Create(&user).Error; err != nil {
					return err
				}
			}

			ui = models.UserIdentity{
				UserID:      user.ID,
				Provider:    info.Provider,
				ProviderSub: info.ProviderSub,
				LastUsedAt:  now,
			}
			if info.Email != "" {
				ui.Email = &info.Email
			}
			if info.DisplayName != "" {
				ui.DisplayName = &info.DisplayName
			}
			return tx.Create(&ui).Error

		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ResolveSession upserts the Session row for (user_id, external_id),
// refreshing last_seen_at on repeat resolution.
func (r *Resolver) ResolveSession(ctx context.Context, userID, externalID string) (*models.Session, error) {
	if externalID == "" {
		return nil, errors.New("identity: session external id is required")
	}

	var sess models.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND external_id = ?", userID, externalID).
		First(&sess).Error
	if err == nil {
		sess.LastSeenAt = time.Now().UTC()
		if err := r.db.WithContext(ctx).Save(&sess).Error; err != nil {
			return nil, err
		}
		return &sess, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sess = models.Session{
		UserID:     userID,
		ExternalID: externalID,
		Title:      fmt.Sprintf("Session %s", externalID),
		IsActive:   true,
	}
	if err := r.db.WithContext(ctx).Create(&sess).Error; err != nil {
		return nil, err
	}
	return &sess, nil
}

// PrimaryIdentity returns the oldest identity bound to a user, if any.
func (r *Resolver) PrimaryIdentity(ctx context.Context, userID string) (*models.UserIdentity, error) {
	var ui models.UserIdentity
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		First(&ui).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ui, nil
}
