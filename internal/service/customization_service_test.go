package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-auth-service/internal/models"
	"resource-auth-service/internal/repository"
	"resource-auth-service/internal/repository/memory"
)

func TestValidateLengthLimits(t *testing.T) {
	cases := []struct {
		name  string
		rec   models.AuthCustomization
		field string
	}{
		{"title too long", models.AuthCustomization{Title: strings.Repeat("a", 101)}, "authCustomTitle"},
		{"description too long", models.AuthCustomization{Description: strings.Repeat("a", 501)}, "authCustomDescription"},
		{"background too long", models.AuthCustomization{Background: strings.Repeat("a", 201)}, "authCustomBackground"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verr := Validate(&tc.rec)
			require.NotNil(t, verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	// Exactly at the limit is accepted.
	ok := models.AuthCustomization{
		Title:       strings.Repeat("a", 100),
		Description: strings.Repeat("a", 500),
		Background:  strings.Repeat("a", 200),
	}
	assert.Nil(t, Validate(&ok))
}

func TestValidateScriptRules(t *testing.T) {
	cases := []struct {
		name  string
		rec   models.AuthCustomization
		field string
		rule  string
	}{
		{"script tag in css", models.AuthCustomization{CSS: "body { } <script>alert(1)</script>"}, "authCustomCSS", "no_script_tag"},
		{"uppercase script tag in css", models.AuthCustomization{CSS: "<SCRIPT>"}, "authCustomCSS", "no_script_tag"},
		{"script tag in html", models.AuthCustomization{HTML: "<div><script src=x></script></div>"}, "authCustomHTML", "no_script_tag"},
		{"mixed case script tag in html", models.AuthCustomization{HTML: "<ScRiPt>"}, "authCustomHTML", "no_script_tag"},
		{"javascript scheme in html", models.AuthCustomization{HTML: `<a href="javascript:alert(1)">x</a>`}, "authCustomHTML", "no_javascript_scheme"},
		{"uppercase javascript scheme", models.AuthCustomization{HTML: `<a href="JAVASCRIPT:alert(1)">x</a>`}, "authCustomHTML", "no_javascript_scheme"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verr := Validate(&tc.rec)
			require.NotNil(t, verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, tc.rule, verr.Rule)
		})
	}

	// The word "javascript" without the scheme colon is fine, as is a
	// javascript: substring in CSS (the scheme rule binds HTML only).
	assert.Nil(t, Validate(&models.AuthCustomization{HTML: "<p>we love javascript here</p>"}))
	assert.Nil(t, Validate(&models.AuthCustomization{CSS: "/* javascript: in a comment */"}))
}

func TestValidateLogoURL(t *testing.T) {
	accepted := []string{
		"",
		"https://cdn.example.com/logo.png",
		"http://cdn.example.com/logo.png",
		"data:image/png;base64,iVBORw0KGgo=",
		"data:image/svg+xml;utf8,<svg/>",
	}
	for _, logo := range accepted {
		assert.Nil(t, Validate(&models.AuthCustomization{Logo: logo}), "logo %q", logo)
	}

	rejected := []string{
		"ftp://cdn.example.com/logo.png",
		"data:text/html;base64,PGh0bWw+",
		"javascript:alert(1)",
		"//cdn.example.com/logo.png",
		"logo.png",
	}
	for _, logo := range rejected {
		verr := Validate(&models.AuthCustomization{Logo: logo})
		require.NotNil(t, verr, "logo %q", logo)
		assert.Equal(t, "authCustomLogo", verr.Field)
	}
}

func TestPresentDefaults(t *testing.T) {
	model := Present(nil)
	assert.False(t, model.Customized)
	assert.Equal(t, DefaultTitle, model.Title)
	assert.Equal(t, DefaultDescription, model.Description)
	assert.Empty(t, model.Logo)
	assert.Empty(t, model.CSS)
	assert.Empty(t, model.HTML)
}

func TestPresentDisabledIgnoresStoredContent(t *testing.T) {
	model := Present(&models.AuthCustomization{
		Enabled:     false,
		Title:       "Custom Title",
		Description: "Custom Description",
		CSS:         "body{}",
		HTML:        "<p>hi</p>",
	})
	assert.False(t, model.Customized)
	assert.Equal(t, DefaultTitle, model.Title)
	assert.Equal(t, DefaultDescription, model.Description)
	assert.Empty(t, model.CSS)
	assert.Empty(t, model.HTML)
}

func TestPresentEnabledPassesCleanContent(t *testing.T) {
	model := Present(&models.AuthCustomization{
		Enabled:     true,
		Title:       "Custom Title",
		Description: "Custom Description",
		Logo:        "https://cdn.example.com/logo.png",
		Background:  "#112233",
		CSS:         ".portal { color: red }",
		HTML:        "<p>welcome</p>",
	})
	assert.True(t, model.Customized)
	assert.Equal(t, "Custom Title", model.Title)
	assert.Equal(t, "Custom Description", model.Description)
	assert.Equal(t, "https://cdn.example.com/logo.png", model.Logo)
	assert.Equal(t, "#112233", model.Background)
	assert.Equal(t, ".portal { color: red }", model.CSS)
	assert.Equal(t, "<p>welcome</p>", model.HTML)
}

func TestPresentDropsUnsafeFieldsIndividually(t *testing.T) {
	// Each unsafe field falls back on its own; clean siblings survive.
	model := Present(&models.AuthCustomization{
		Enabled: true,
		Title:   strings.Repeat("a", 101),
		Logo:    "ftp://bad/logo.png",
		CSS:     "<script>",
		HTML:    `<a href="javascript:alert(1)">x</a>`,

		Description: "Still fine",
	})
	assert.True(t, model.Customized)
	assert.Equal(t, DefaultTitle, model.Title)
	assert.Equal(t, "Still fine", model.Description)
	assert.Empty(t, model.Logo)
	assert.Empty(t, model.CSS)
	assert.Empty(t, model.HTML)
}

func newCustomizationFixture(t *testing.T) (*CustomizationService, *memory.ResourceStore) {
	t.Helper()
	store := memory.NewResourceStore()
	store.PutResource(models.Resource{ResourceID: 1, Name: "grafana"})
	return NewCustomizationService(store, nil), store
}

func TestCustomizationGetUnknownResource(t *testing.T) {
	svc, _ := newCustomizationFixture(t)

	_, err := svc.Get(context.Background(), 99)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCustomizationGetWithoutRecord(t *testing.T) {
	svc, _ := newCustomizationFixture(t)

	rec, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.ResourceID)
	assert.False(t, rec.Enabled)
	assert.Empty(t, rec.Title)
}

func TestCustomizationSetAndGet(t *testing.T) {
	svc, _ := newCustomizationFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, &models.AuthCustomization{
		ResourceID: 1,
		Enabled:    true,
		Title:      "Custom Title",
	}))

	rec, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rec.Enabled)
	assert.Equal(t, "Custom Title", rec.Title)
}

func TestCustomizationSetUnknownResource(t *testing.T) {
	svc, _ := newCustomizationFixture(t)

	err := svc.Set(context.Background(), &models.AuthCustomization{ResourceID: 99})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCustomizationSetRejectsInvalidRecord(t *testing.T) {
	svc, _ := newCustomizationFixture(t)
	ctx := context.Background()

	err := svc.Set(ctx, &models.AuthCustomization{
		ResourceID: 1,
		HTML:       "<script>alert(1)</script>",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "authCustomHTML", verr.Field)

	// Nothing was persisted.
	rec, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, rec.HTML)
}

func TestPresentForResourceReflectsWrites(t *testing.T) {
	svc, _ := newCustomizationFixture(t)
	ctx := context.Background()

	model := svc.PresentForResource(ctx, 1)
	assert.False(t, model.Customized)

	require.NoError(t, svc.Set(ctx, &models.AuthCustomization{
		ResourceID: 1,
		Enabled:    true,
		Title:      "Custom Title",
	}))

	// Set invalidates the render cache, so the write is visible immediately.
	model = svc.PresentForResource(ctx, 1)
	assert.True(t, model.Customized)
	assert.Equal(t, "Custom Title", model.Title)
}

type failingRepo struct {
	repository.ResourceRepository
}

func (f failingRepo) GetCustomization(ctx context.Context, resourceID int) (*models.AuthCustomization, error) {
	return nil, errors.New("store down")
}

func TestPresentForResourceDegradesOnStoreFailure(t *testing.T) {
	svc := NewCustomizationService(failingRepo{}, nil)

	model := svc.PresentForResource(context.Background(), 1)
	assert.False(t, model.Customized)
	assert.Equal(t, DefaultTitle, model.Title)
	assert.Equal(t, DefaultDescription, model.Description)
}
