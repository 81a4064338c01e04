package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/playgrid/arena/cache"
	"github.com/playgrid/arena/models"
	"github.com/playgrid/arena/repositories"
	"github.com/playgrid/arena/storage"
)

type UserService struct {
	userRepo  repositories.UserRepository
	rankCache *cache.RankCache
	uploader  storage.FileUploader
	logger    *slog.Logger
}

// NewUserService builds the user service. rankCache may be nil; the
// cached rank is display-only and profiles load fine without it.
func NewUserService(userRepo repositories.UserRepository, rankCache *cache.RankCache, uploader storage.FileUploader, logger *slog.Logger) *UserService {
	return &UserService{userRepo: userRepo, rankCache: rankCache, uploader: uploader, logger: logger}
}

// GetProfile returns the user with per-game stats and a resolved avatar
// URL. The password hash is never exposed.
func (s *UserService) GetProfile(ctx context.Context, userID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	stats, err := s.userRepo.ListGameStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load game stats for user %d: %w", userID, err)
	}
	user.GameStats = stats
	user.PasswordHash = ""
	user.AvatarURL = resolveMediaURL(s.uploader, user.AvatarKey)

	if s.rankCache != nil {
		if rank, ok, cacheErr := s.rankCache.GetRank(ctx, "", userID); cacheErr != nil {
			s.logger.Warn("rank cache lookup failed", slog.Int("user_id", userID), slog.Any("error", cacheErr))
		} else if ok {
			user.GlobalRank = &rank
		}
	}
	return user, nil
}

// UploadAvatar replaces the user's avatar image.
func (s *UserService) UploadAvatar(ctx context.Context, userID int, contentType string, reader io.Reader) (*models.User, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: media uploads are disabled", ErrValidationFailed)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	key := fmt.Sprintf("avatars/%d/%s", userID, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, contentType, reader)
	if err != nil {
		return nil, fmt.Errorf("avatar upload failed: %w", err)
	}

	oldKey := user.AvatarKey
	if err := s.userRepo.UpdateAvatarKey(ctx, userID, &result.Key); err != nil {
		return nil, err
	}
	if oldKey != nil {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.Warn("failed to delete previous avatar",
				slog.Int("user_id", userID),
				slog.String("key", *oldKey),
				slog.Any("error", delErr))
		}
	}

	user.AvatarKey = &result.Key
	user.AvatarURL = &result.Location
	user.PasswordHash = ""
	return user, nil
}
