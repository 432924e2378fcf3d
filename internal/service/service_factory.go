package service

import (
	"resource-auth-service/internal/config"
	"resource-auth-service/internal/email"
	"resource-auth-service/internal/hashing"
	"resource-auth-service/internal/repository"
	redisrepo "resource-auth-service/internal/repository/redis"
)

// ServiceFactory creates and holds the service singletons.
type ServiceFactory struct {
	repo       repository.ResourceRepository
	hasher     *hashing.Hasher
	challenges *redisrepo.ChallengeCache
	sessions   *redisrepo.SessionCache
	mailer     email.Sender
	events     EventPublisher
	cfg        *config.Config

	authService          *AuthService
	customizationService *CustomizationService
}

func NewServiceFactory(
	repo repository.ResourceRepository,
	hasher *hashing.Hasher,
	challenges *redisrepo.ChallengeCache,
	sessions *redisrepo.SessionCache,
	mailer email.Sender,
	events EventPublisher,
	cfg *config.Config,
) *ServiceFactory {
	return &ServiceFactory{
		repo:       repo,
		hasher:     hasher,
		challenges: challenges,
		sessions:   sessions,
		mailer:     mailer,
		events:     events,
		cfg:        cfg,
	}
}

// CustomizationService returns the customization service singleton.
func (f *ServiceFactory) CustomizationService() *CustomizationService {
	if f.customizationService == nil {
		f.customizationService = NewCustomizationService(f.repo, f.events)
	}
	return f.customizationService
}

// AuthService returns the auth service singleton.
func (f *ServiceFactory) AuthService() *AuthService {
	if f.authService == nil {
		f.authService = NewAuthService(
			f.repo,
			f.hasher,
			f.challenges,
			f.sessions,
			f.mailer,
			f.events,
			f.CustomizationService(),
			f.cfg,
		)
	}
	return f.authService
}
