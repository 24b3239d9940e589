package onboarding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepilot/control-plane/pkg/models"
)

func testCatalog() *Catalog {
	return NewCatalog(func(ctx context.Context) ([]Template, error) {
		return []Template{
			{Slug: "bakery", Industries: []string{"bakery"}, Confidence: 0.9, Pages: []string{"home", "menu", "contact"}},
			{Slug: "law", Industries: []string{"law firm"}, Confidence: 0.9, Pages: []string{"home", "practice-areas", "contact"}},
		}, nil
	})
}

func TestCatalog_Match_TieBreaksOnIndustrySubstring(t *testing.T) {
	c := testCatalog()
	got := c.Match(context.Background(), Brief{Industry: "artisan bakery downtown"})
	assert.Equal(t, "bakery", got.Slug)
}

func TestCatalog_Match_FallsBackWhenFetchFails(t *testing.T) {
	c := NewCatalog(func(ctx context.Context) ([]Template, error) {
		return nil, assertErr
	})
	got := c.Match(context.Background(), Brief{Industry: "anything"})
	assert.Equal(t, "flexify", got.Slug)
}

var assertErr = &testError{"fetch failed"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestWorkflow_RunVoice_RequiresSiteTitle(t *testing.T) {
	w := New(nil, testCatalog(), nil, nil)
	_, err := w.RunVoice(context.Background(), "", nil)
	require.Error(t, err)
}

func TestWorkflow_RunVoice_BuildsContextFromAnswers(t *testing.T) {
	w := New(nil, testCatalog(), nil, nil)
	result, err := w.RunVoice(context.Background(), "Downtown Bakery", []InterviewAnswer{
		{Question: "industry", Answer: "bakery"},
		{Question: "tone", Answer: "warm"},
		{Question: "services", Answer: "sourdough loaves, custom cakes; catering"},
		{Question: "describe your business", Answer: "We bake sourdough daily."},
	})

	require.NoError(t, err)
	assert.Equal(t, "bakery", result.Deployment.Template.Slug)
	assert.Equal(t, "Downtown Bakery", result.Content.Business.Name)
	assert.Equal(t, "bakery", result.Content.Business.Industry)
	assert.Equal(t, "warm", result.Content.Tone)
	assert.Equal(t, []string{"sourdough loaves", "custom cakes", "catering"}, result.Content.Business.Services)
	assert.NotNil(t, result.Content.VoiceInterview)
	assert.Contains(t, result.Content.VoiceInterview.Answers["describe your business"], "sourdough")
}

func TestWorkflow_RunVoice_FallsBackToKeywordMatchWithoutTextModel(t *testing.T) {
	w := New(nil, testCatalog(), nil, nil)
	result, err := w.RunVoice(context.Background(), "Law Office", []InterviewAnswer{
		{Question: "industry", Answer: "law firm"},
	})
	require.NoError(t, err)
	assert.Equal(t, "law", result.Deployment.Template.Slug)
}

func TestValidateContexts_RejectsMissingBusinessName(t *testing.T) {
	dc := models.DeploymentContext{Template: models.Template{Slug: "bakery"}}
	cc := models.ContentContext{}
	err := validateContexts(dc, cc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "business name")
}

func TestValidateContexts_RejectsBadColor(t *testing.T) {
	dc := models.DeploymentContext{Template: models.Template{Slug: "bakery"}, Branding: models.Branding{PrimaryColor: "blue"}}
	cc := models.ContentContext{Business: models.Business{Name: "Acme"}}
	err := validateContexts(dc, cc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary color")
}
