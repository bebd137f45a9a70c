// Package provision implements the idempotent operations the
// provisioning CLI drives: club creation, admin accounts, credential
// seeding and display config.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shedview/shedview-api/internal/auth"
	"github.com/shedview/shedview-api/internal/crypto"
	"github.com/shedview/shedview-api/internal/models"
	"github.com/shedview/shedview-api/internal/repository"
)

var subdomainRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

// Service wires the provisioning operations.
type Service struct {
	repos     *repository.Repositories
	encryptor *crypto.Encryptor
	logger    *slog.Logger
}

// New creates a provisioning service.
func New(repos *repository.Repositories, encryptor *crypto.Encryptor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repos: repos, encryptor: encryptor, logger: logger}
}

// CreateClub creates a club, or returns the existing one when the
// subdomain is already taken (idempotent re-runs).
func (s *Service) CreateClub(ctx context.Context, name, subdomain, customDomain, sourceURL string) (*models.Club, error) {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if !subdomainRe.MatchString(subdomain) {
		return nil, fmt.Errorf("invalid subdomain %q", subdomain)
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("club name is required")
	}

	club := &models.Club{
		Name:          strings.TrimSpace(name),
		Subdomain:     subdomain,
		CustomDomain:  strings.ToLower(strings.TrimSpace(customDomain)),
		DataSourceURL: strings.TrimSpace(sourceURL),
	}

	err := s.repos.Club.Create(ctx, club)
	if errors.Is(err, repository.ErrConflict) {
		existing, getErr := s.repos.Club.GetBySubdomain(ctx, subdomain)
		if getErr != nil {
			return nil, fmt.Errorf("subdomain taken but lookup failed: %w", getErr)
		}
		s.logger.Info("club already provisioned", "subdomain", subdomain, "club_id", existing.ID)
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("club created", "subdomain", subdomain, "club_id", club.ID)
	return club, nil
}

// CreateAdminUser creates a club admin with an Argon2id-hashed
// password. Re-running with an existing email returns the existing user
// untouched.
func (s *Service) CreateAdminUser(ctx context.Context, clubID, email, password, fullName string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(password, auth.DefaultArgon2Params())
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ClubID:       clubID,
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(fullName),
		Role:         models.RoleClubAdmin,
		IsActive:     true,
	}

	err = s.repos.User.Create(ctx, user)
	if errors.Is(err, repository.ErrConflict) {
		existing, getErr := s.repos.User.GetByEmail(ctx, clubID, email)
		if getErr != nil {
			return nil, fmt.Errorf("email taken but lookup failed: %w", getErr)
		}
		s.logger.Info("admin user already provisioned", "club_id", clubID, "user_id", existing.ID)
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin user created", "club_id", clubID, "user_id", user.ID)
	return user, nil
}

// SetCredentials encrypts and stores the upstream credentials for a
// club, rotating any previous blob.
func (s *Service) SetCredentials(ctx context.Context, clubID, sourceURL, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return errors.New("username and password are required")
	}

	club, err := s.repos.Club.GetByID(ctx, clubID)
	if err != nil {
		return err
	}
	if sourceURL == "" {
		sourceURL = club.DataSourceURL
	}
	if strings.TrimSpace(sourceURL) == "" {
		return errors.New("club has no data source URL and none was given")
	}

	blob, err := s.encryptor.EncryptCredentials(crypto.Credentials{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	if err := s.repos.Club.UpdateDataSource(ctx, clubID, strings.TrimSpace(sourceURL), blob); err != nil {
		return err
	}
	s.logger.Info("credentials set", "club_id", clubID)
	return nil
}

// SeedDisplayConfig merges the given documents into the club's config,
// validating them first. Safe to re-run.
func (s *Service) SeedDisplayConfig(ctx context.Context, clubID string, branding, display, tvDisplay map[string]any) error {
	for name, doc := range map[string]map[string]any{
		"branding": branding, "display_config": display, "tv_display_config": tvDisplay,
	} {
		if errs := models.ValidateDisplayPatch(doc); len(errs) > 0 {
			return fmt.Errorf("invalid %s: %v", name, errs[0])
		}
	}

	club, err := s.repos.Club.GetByID(ctx, clubID)
	if err != nil {
		return err
	}

	if branding != nil {
		club.Branding = models.DeepMerge(club.Branding, branding)
	}
	if display != nil {
		club.DisplayConfig = models.DeepMerge(club.DisplayConfig, display)
	}
	if tvDisplay != nil {
		club.TVDisplayConfig = models.DeepMerge(club.TVDisplayConfig, tvDisplay)
	}

	if err := s.repos.Club.UpdateDisplayConfig(ctx, club); err != nil {
		return err
	}
	s.logger.Info("display config seeded", "club_id", clubID)
	return nil
}
