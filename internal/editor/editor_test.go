package editor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepilot/control-plane/internal/providers/aivendor"
	"github.com/sitepilot/control-plane/internal/store"
	"github.com/sitepilot/control-plane/pkg/models"
)

type fakeSiteActions struct {
	updatedPages map[string]map[string]string
	createdPages map[string]string
	settings     map[string]string
	nextID       int
}

func newFakeSiteActions() *fakeSiteActions {
	return &fakeSiteActions{updatedPages: map[string]map[string]string{}, createdPages: map[string]string{}, settings: map[string]string{}}
}

func (f *fakeSiteActions) UpdatePage(ctx context.Context, siteURL, pageID string, updates map[string]string) error {
	f.updatedPages[pageID] = updates
	return nil
}
func (f *fakeSiteActions) UpdateSettings(ctx context.Context, siteURL string, settings map[string]string) error {
	for k, v := range settings {
		f.settings[k] = v
	}
	return nil
}
func (f *fakeSiteActions) CreatePage(ctx context.Context, siteURL, title, content, slug, status string) (string, error) {
	f.createdPages[slug] = content
	f.nextID++
	return "p" + string(rune('0'+f.nextID)), nil
}
func (f *fakeSiteActions) ListPages(ctx context.Context, siteURL string) ([]PageSummary, error) {
	return []PageSummary{{ID: "1", Slug: "home", Title: "Home", Excerpt: "welcome"}}, nil
}

type fakeAI struct {
	reply string
}

func (f *fakeAI) Vendor() string { return "openai" }
func (f *fakeAI) Complete(ctx context.Context, model string, messages []models.ChatMessage, maxTokens int, temperature float64) (*models.AIResponse, error) {
	return &models.AIResponse{Content: f.reply, Model: model}, nil
}

var _ aivendor.Client = (*fakeAI)(nil)

func TestExecutor_CreateSession_SeedsSystemPromptFirst(t *testing.T) {
	s := store.NewMemoryStore()
	e := New(s, newFakeSiteActions(), &fakeAI{})

	session, err := e.CreateSession(context.Background(), "tenant-1", "site-1", "https://example.com")
	require.NoError(t, err)

	msgs, err := s.ListMessages(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "home")
}

func TestExecutor_SendMessage_DispatchesActionsInOrderWithoutAborting(t *testing.T) {
	s := store.NewMemoryStore()
	site := newFakeSiteActions()
	reply := "Sure, I'll make those changes.\n" +
		":::action\n{\"type\":\"update_page\",\"pageId\":\"1\",\"updates\":{\"content\":\"new copy\"}}\n:::\n" +
		":::action\n{\"type\":\"bogus\"}\n:::\n" +
		":::action\n{\"type\":\"create_page\",\"page\":{\"title\":\"Pricing\",\"content\":\"pricing copy\",\"slug\":\"pricing\"}}\n:::"
	e := New(s, site, &fakeAI{reply: reply})

	session, err := e.CreateSession(context.Background(), "tenant-1", "site-1", "https://example.com")
	require.NoError(t, err)

	displayText, results, err := e.SendMessage(context.Background(), session.ID, "https://example.com", "please update the site")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, "unknown action type", results[1].Error)
	assert.True(t, results[2].Success)

	assert.Equal(t, "new copy", site.updatedPages["1"]["content"])
	assert.Equal(t, "pricing copy", site.createdPages["pricing"])

	assert.NotContains(t, displayText, ":::action")
	assert.Equal(t, "Sure, I'll make those changes.", displayText)
}

func TestExecutor_SendMessage_PreservesTranscriptOrder(t *testing.T) {
	s := store.NewMemoryStore()
	e := New(s, newFakeSiteActions(), &fakeAI{reply: "sure, done"})

	session, err := e.CreateSession(context.Background(), "tenant-1", "site-1", "https://example.com")
	require.NoError(t, err)

	_, _, err = e.SendMessage(context.Background(), session.ID, "https://example.com", "hello")
	require.NoError(t, err)

	msgs, err := s.ListMessages(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "assistant", msgs[2].Role)
}

func TestExecutor_SendMessage_NoActionsMeansNoMetadata(t *testing.T) {
	s := store.NewMemoryStore()
	e := New(s, newFakeSiteActions(), &fakeAI{reply: "no changes needed"})

	session, err := e.CreateSession(context.Background(), "tenant-1", "site-1", "https://example.com")
	require.NoError(t, err)

	_, results, err := e.SendMessage(context.Background(), session.ID, "https://example.com", "hello")
	require.NoError(t, err)
	assert.Empty(t, results)

	msgs, err := s.ListMessages(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Nil(t, msgs[2].Metadata)
}
