package applicator

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepilot/control-plane/pkg/models"
)

type fakeSite struct {
	failPlugin string
	nextID     int
	calls      []string
}

func (f *fakeSite) UpdateSettings(ctx context.Context, siteURL string, settings map[string]string) error {
	f.calls = append(f.calls, "settings")
	return nil
}
func (f *fakeSite) UploadAsset(ctx context.Context, siteURL, kind, assetURL string) error {
	f.calls = append(f.calls, "asset:"+kind)
	return nil
}
func (f *fakeSite) InstallPlugin(ctx context.Context, siteURL, slug string, config map[string]string) error {
	f.calls = append(f.calls, "plugin:"+slug)
	if slug == f.failPlugin {
		return errors.New("plugin conflict")
	}
	return nil
}
func (f *fakeSite) CreatePage(ctx context.Context, siteURL, title, content, slug, status string) (string, error) {
	f.calls = append(f.calls, "page:"+slug)
	f.nextID++
	return strconv.Itoa(f.nextID), nil
}
func (f *fakeSite) SetFrontPageByID(ctx context.Context, siteURL, pageID string) error {
	f.calls = append(f.calls, "front:"+pageID)
	return nil
}

func TestApplicator_Apply_AllSucceed(t *testing.T) {
	site := &fakeSite{}
	a := New(site, nil)

	dc := models.DeploymentContext{
		Template: models.Template{Slug: "flexify"},
		Branding: models.Branding{LogoURL: "https://cdn/logo.png"},
		Plugins:  []models.Plugin{{Slug: "seo", Activate: true}},
	}
	cc := models.ContentContext{
		Business: models.Business{Name: "Acme"},
		Pages:    []models.ContentPage{{Slug: "home", Title: "Home", Sections: []string{"hero"}}},
	}
	result := a.Apply(context.Background(), "https://example.com", dc, cc)

	require.True(t, result.AllSucceeded())
	assert.Contains(t, site.calls, "settings")
	assert.Contains(t, site.calls, "asset:logo")
	assert.Contains(t, site.calls, "plugin:seo")
	assert.Contains(t, site.calls, "page:home")
	assert.Contains(t, site.calls, "front:1")
}

func TestApplicator_Apply_PartialFailureDoesNotAbort(t *testing.T) {
	site := &fakeSite{failPlugin: "broken-plugin"}
	a := New(site, nil)

	dc := models.DeploymentContext{
		Template: models.Template{Slug: "flexify"},
		Plugins:  []models.Plugin{{Slug: "broken-plugin", Activate: true}},
	}
	cc := models.ContentContext{
		Business: models.Business{Name: "Acme"},
		Pages: []models.ContentPage{
			{Slug: "home", Title: "Home"},
			{Slug: "about", Title: "About"},
		},
	}
	result := a.Apply(context.Background(), "https://example.com", dc, cc)

	assert.False(t, result.AllSucceeded())
	// every subsequent sub-task still ran despite the plugin failure
	assert.Contains(t, site.calls, "page:home")
	assert.Contains(t, site.calls, "page:about")
}

func TestApplicator_Apply_DefaultsPagesWhenUnset(t *testing.T) {
	site := &fakeSite{}
	a := New(site, nil)

	cc := models.ContentContext{Business: models.Business{Name: "Acme"}}
	a.Apply(context.Background(), "https://example.com", models.DeploymentContext{Template: models.Template{Slug: "flexify"}}, cc)

	assert.Contains(t, site.calls, "page:home")
	assert.Contains(t, site.calls, "page:about")
	assert.Contains(t, site.calls, "page:contact")
}

func TestApplicator_Apply_FrontPageOnlySetWhenHomeCreated(t *testing.T) {
	site := &fakeSite{}
	a := New(site, nil)

	cc := models.ContentContext{
		Business: models.Business{Name: "Acme"},
		Pages:    []models.ContentPage{{Slug: "about", Title: "About"}},
	}
	result := a.Apply(context.Background(), "https://example.com", models.DeploymentContext{Template: models.Template{Slug: "flexify"}}, cc)

	require.True(t, result.AllSucceeded())
	for _, c := range site.calls {
		assert.NotContains(t, c, "front:")
	}
}
