package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"resource-auth-service/internal/models"
	"resource-auth-service/internal/repository"
	"resource-auth-service/internal/util"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 500
	maxBackgroundLength  = 200
)

// Fixed branding used whenever customization is disabled, absent, or fails
// the render-time gate.
const (
	DefaultTitle       = "Authentication Required"
	DefaultDescription = "Verify your identity to access this resource"
	DefaultLogo        = ""
)

// RenderModel is what the portal page may safely render. CSS and HTML are
// only ever populated from an enabled record that passed the render-time
// gate.
type RenderModel struct {
	Customized  bool   `json:"customized"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Logo        string `json:"logo,omitempty"`
	Background  string `json:"background,omitempty"`
	CSS         string `json:"css,omitempty"`
	HTML        string `json:"html,omitempty"`
}

// CustomizationService owns both gates around administrator-supplied
// branding: validation on the write path and sanitization on the render path.
// The two run the same minimum substring rules but are deliberately separate
// functions, so weakening one cannot silently weaken the other.
type CustomizationService struct {
	repo   repository.ResourceRepository
	events EventPublisher
	cache  *gocache.Cache
}

func NewCustomizationService(repo repository.ResourceRepository, events EventPublisher) *CustomizationService {
	return &CustomizationService{
		repo:   repo,
		events: events,
		cache:  gocache.New(time.Minute, 5*time.Minute),
	}
}

// Get returns the stored record for the administrator settings form. A
// missing resource is an error; a missing record for an existing resource
// comes back zero-valued with Enabled=false, matching the replace-wholesale
// write model.
func (s *CustomizationService) Get(ctx context.Context, resourceID int) (*models.AuthCustomization, error) {
	if _, err := s.repo.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}

	rec, err := s.repo.GetCustomization(ctx, resourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &models.AuthCustomization{ResourceID: resourceID}, nil
		}
		return nil, err
	}
	return rec, nil
}

// Set validates and persists a full replacement record. Any rule violation
// rejects the whole write; nothing is partially persisted.
func (s *CustomizationService) Set(ctx context.Context, rec *models.AuthCustomization) error {
	if _, err := s.repo.GetResource(ctx, rec.ResourceID); err != nil {
		return err
	}

	if verr := Validate(rec); verr != nil {
		return verr
	}

	if err := s.repo.SetCustomization(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist customization: %w", err)
	}

	s.cache.Delete(cacheKey(rec.ResourceID))

	if s.events != nil {
		if err := s.events.Publish(ctx, models.AuthEvent{
			EventType:  models.EventCustomizationSet,
			ResourceID: rec.ResourceID,
		}); err != nil {
			util.Warn("Failed to publish customization event", util.ErrorField(err))
		}
	}

	util.Info("Customization record replaced",
		util.Int("resource_id", rec.ResourceID),
		util.Bool("enabled", rec.Enabled))
	return nil
}

// PresentForResource loads the stored record and runs it through the
// render-time gate. Store failures degrade to the default branding; branding
// must never take an auth page down.
func (s *CustomizationService) PresentForResource(ctx context.Context, resourceID int) RenderModel {
	key := cacheKey(resourceID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(RenderModel)
	}

	rec, err := s.repo.GetCustomization(ctx, resourceID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			util.Warn("Failed to load customization, using defaults",
				util.Int("resource_id", resourceID),
				util.ErrorField(err))
		}
		rec = nil
	}

	model := Present(rec)
	s.cache.Set(key, model, gocache.DefaultExpiration)
	return model
}

// Validate is the write-path gate behind the settings form. Rules are substring
// heuristics, not a full sanitizer; Present applies the same minimum rule
// set independently at render time.
func Validate(rec *models.AuthCustomization) *ValidationError {
	if len(rec.Title) > maxTitleLength {
		return &ValidationError{Field: "authCustomTitle", Rule: "max_length_100"}
	}
	if len(rec.Description) > maxDescriptionLength {
		return &ValidationError{Field: "authCustomDescription", Rule: "max_length_500"}
	}
	if len(rec.Background) > maxBackgroundLength {
		return &ValidationError{Field: "authCustomBackground", Rule: "max_length_200"}
	}
	if containsScriptTag(rec.CSS) {
		return &ValidationError{Field: "authCustomCSS", Rule: "no_script_tag"}
	}
	if containsScriptTag(rec.HTML) {
		return &ValidationError{Field: "authCustomHTML", Rule: "no_script_tag"}
	}
	if containsJavascriptScheme(rec.HTML) {
		return &ValidationError{Field: "authCustomHTML", Rule: "no_javascript_scheme"}
	}
	if rec.Logo != "" && !validLogoURL(rec.Logo) {
		return &ValidationError{Field: "authCustomLogo", Rule: "image_url_or_data_url"}
	}
	return nil
}

// Present is the render-path gate. It never trusts that Validate ran: a
// record that slips past the write path still cannot put a script-opening
// sequence on the page. Enabled gates everything: when false, stored content
// is ignored entirely.
func Present(rec *models.AuthCustomization) RenderModel {
	model := RenderModel{
		Title:       DefaultTitle,
		Description: DefaultDescription,
		Logo:        DefaultLogo,
	}

	if rec == nil || !rec.Enabled {
		return model
	}

	model.Customized = true
	if rec.Title != "" && len(rec.Title) <= maxTitleLength {
		model.Title = rec.Title
	}
	if rec.Description != "" && len(rec.Description) <= maxDescriptionLength {
		model.Description = rec.Description
	}
	if rec.Logo != "" && validLogoURL(rec.Logo) {
		model.Logo = rec.Logo
	}
	if rec.Background != "" && len(rec.Background) <= maxBackgroundLength {
		model.Background = rec.Background
	}
	if rec.CSS != "" && !containsScriptTag(rec.CSS) {
		model.CSS = rec.CSS
	}
	// HTML is administrator-trusted raw markup, the highest-risk surface
	// here. The substring gate below is the last resort, not a sanitizer;
	// the write path for these fields must stay behind the resource
	// administration authorization boundary.
	if rec.HTML != "" && !containsScriptTag(rec.HTML) && !containsJavascriptScheme(rec.HTML) {
		model.HTML = rec.HTML
	}

	return model
}

func containsScriptTag(s string) bool {
	return strings.Contains(strings.ToLower(s), "<script")
}

func containsJavascriptScheme(s string) bool {
	return strings.Contains(strings.ToLower(s), "javascript:")
}

func validLogoURL(logo string) bool {
	return strings.HasPrefix(logo, "data:image/") ||
		strings.HasPrefix(logo, "http://") ||
		strings.HasPrefix(logo, "https://")
}

func cacheKey(resourceID int) string {
	return fmt.Sprintf("customization:%d", resourceID)
}
