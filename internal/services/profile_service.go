package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-taskboard/internal/models"
)

type profileServiceImpl struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

func NewProfileService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
) ProfileService {
	return &profileServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

func (s *profileServiceImpl) GetUserIDByHandle(ctx context.Context, handle string) (string, error) {
	handle = strings.ToLower(handle)

	const selectUserIDByHandleQuery = `
SELECT user_id
FROM profiles
WHERE handle = $1
`
	var userID string
	err := s.pgPool.QueryRow(
		ctx,
		selectUserIDByHandleQuery,
		handle,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Debug().
				Str("handle", handle).
				Msg("profile not found")
			return "", ErrUserNotFound
		}

		s.logger.Error().
			Err(err).
			Str("handle", handle).
			Msg("failed to select profile by handle")
		return "", err
	}
	return userID, nil
}

func (s *profileServiceImpl) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	profile := &models.Profile{UserID: userID}

	const selectProfileQuery = `
SELECT email,
       handle
FROM profiles
WHERE user_id = $1
`
	err := s.pgPool.QueryRow(
		ctx,
		selectProfileQuery,
		profile.UserID,
	).Scan(
		&profile.Email,
		&profile.Handle,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("user_id", userID).
				Msg("profile not found")
			return nil, ErrUserNotFound
		}

		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to select profile")
		return nil, err
	}
	return profile, nil
}
