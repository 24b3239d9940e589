// Package editor implements the Edit Session Executor: a persistent,
// chat-driven conversation that turns natural-language instructions
// into site edits via tagged action blocks.
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sitepilot/control-plane/internal/providers/aivendor"
	"github.com/sitepilot/control-plane/internal/store"
	"github.com/sitepilot/control-plane/pkg/models"
)

// SiteActions is the subset of a site's REST surface the editor can
// dispatch actions against.
type SiteActions interface {
	UpdatePage(ctx context.Context, siteURL, pageID string, updates map[string]string) error
	UpdateSettings(ctx context.Context, siteURL string, settings map[string]string) error
	CreatePage(ctx context.Context, siteURL, title, content, slug, status string) (string, error)
	ListPages(ctx context.Context, siteURL string) ([]PageSummary, error)
}

// PageSummary is a live site page's current state, used to synthesize
// the session's system prompt.
type PageSummary struct {
	ID      string
	Slug    string
	Title   string
	Excerpt string
}

// actionBlock matches a `:::action\n{...}\n:::` fence in an assistant
// reply, non-greedy so multiple blocks in one reply are each matched.
var actionBlock = regexp.MustCompile(`(?s):::action\n(.*?)\n:::`)

// Executor runs edit sessions.
type Executor struct {
	store store.Store
	site  SiteActions
	ai    aivendor.Client
}

// New builds an Executor.
func New(s store.Store, site SiteActions, ai aivendor.Client) *Executor {
	return &Executor{store: s, site: site, ai: ai}
}

// CreateSession opens a new session for siteID, seeding it with a
// system prompt built from the site's current pages. The system
// prompt is always the session's first message.
func (e *Executor) CreateSession(ctx context.Context, tenantID, siteID, siteURL string) (*models.EditSession, error) {
	now := time.Now()
	session := &models.EditSession{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		SiteID:    siteID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("editor: creating session: %w", err)
	}

	prompt, err := e.buildSystemPrompt(ctx, siteURL)
	if err != nil {
		return nil, fmt.Errorf("editor: building system prompt: %w", err)
	}
	if err := e.store.AppendMessage(ctx, &models.EditMessage{
		ID: uuid.NewString(), SessionID: session.ID, Role: "system", Content: prompt, CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("editor: seeding system prompt: %w", err)
	}

	return session, nil
}

func (e *Executor) buildSystemPrompt(ctx context.Context, siteURL string) (string, error) {
	pages, err := e.site.ListPages(ctx, siteURL)
	if err != nil {
		return "", err
	}

	prompt := "You are editing a live site. Pages:\n"
	for _, p := range pages {
		prompt += fmt.Sprintf("- id %s: %s (%s): %s\n", p.ID, p.Slug, p.Title, p.Excerpt)
	}
	prompt += "\nTo change something, emit a fenced action block after your reply to the user:\n:::action\n" +
		`{"type":"update_page","pageId":"1","updates":{"title":"New Title"}}` + "\n:::\n" +
		"Supported types:\n" +
		`  update_page{pageId, updates{title?,content?,slug?,status?}}` + "\n" +
		`  create_page{page{title,content,slug?,status?}}` + "\n" +
		`  update_settings{settings{title?,tagline?}}` + "\n" +
		"Action blocks are stripped before the reply is shown to the user, so write your conversational reply as plain text outside the fence."
	return prompt, nil
}

// SendMessage appends userMessage to the session, asks the model for a
// reply, dispatches every action block in the reply in source order,
// and returns the reply with action fences stripped (displayText) plus
// one ActionResult per block. A failing action never aborts the
// remaining actions in the same reply.
func (e *Executor) SendMessage(ctx context.Context, sessionID, siteURL, userMessage string) (displayText string, results []models.ActionResult, err error) {
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	if err := e.store.AppendMessage(ctx, &models.EditMessage{
		ID: uuid.NewString(), SessionID: sessionID, Role: "user", Content: userMessage, CreatedAt: now,
	}); err != nil {
		return "", nil, err
	}

	history, err := e.store.ListMessages(ctx, sessionID)
	if err != nil {
		return "", nil, err
	}

	aiResp, err := e.ai.Complete(ctx, "gpt-4o-mini", toChatMessages(history), aivendor.DefaultMaxTokens, 0.7)
	if err != nil {
		return "", nil, err
	}

	results = e.dispatchActions(ctx, siteURL, aiResp.Content)
	displayText = stripActionBlocks(aiResp.Content)

	assistantMsg := &models.EditMessage{
		ID: uuid.NewString(), SessionID: sessionID, Role: "assistant", Content: aiResp.Content, CreatedAt: time.Now(),
	}
	if len(results) > 0 {
		assistantMsg.Metadata = map[string]interface{}{"changes": results}
	}
	if err := e.store.AppendMessage(ctx, assistantMsg); err != nil {
		return "", nil, err
	}
	if err := e.store.TouchSession(ctx, sessionID, time.Now()); err != nil {
		return "", nil, err
	}
	_ = session

	return displayText, results, nil
}

// stripActionBlocks removes every `:::action` fence from reply and
// trims the surrounding whitespace left behind.
func stripActionBlocks(reply string) string {
	stripped := actionBlock.ReplaceAllString(reply, "")
	return strings.TrimSpace(stripped)
}

func toChatMessages(history []*models.EditMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, len(history))
	for i, m := range history {
		out[i] = models.ChatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// pageUpdates is update_page's updates{} payload; every field is
// optional, so only the fields the model actually sent are applied.
type pageUpdates struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Slug    *string `json:"slug,omitempty"`
	Status  *string `json:"status,omitempty"`
}

// newPage is create_page's page{} payload.
type newPage struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Slug    string `json:"slug,omitempty"`
	Status  string `json:"status,omitempty"`
}

// settingsUpdate is update_settings's settings{} payload.
type settingsUpdate struct {
	Title   *string `json:"title,omitempty"`
	Tagline *string `json:"tagline,omitempty"`
}

type parsedAction struct {
	Type     string          `json:"type"`
	PageID   string          `json:"pageId,omitempty"`
	Updates  *pageUpdates    `json:"updates,omitempty"`
	Page     *newPage        `json:"page,omitempty"`
	Settings *settingsUpdate `json:"settings,omitempty"`
}

// dispatchActions runs every `:::action` block found in reply, in the
// order they appear, never stopping early on a failed action.
func (e *Executor) dispatchActions(ctx context.Context, siteURL, reply string) []models.ActionResult {
	matches := actionBlock.FindAllStringSubmatch(reply, -1)
	results := make([]models.ActionResult, 0, len(matches))

	for _, m := range matches {
		var action parsedAction
		if err := json.Unmarshal([]byte(m[1]), &action); err != nil {
			results = append(results, models.ActionResult{Success: false, Error: "malformed action block"})
			continue
		}
		results = append(results, e.dispatchOne(ctx, siteURL, action))
	}
	return results
}

func (e *Executor) dispatchOne(ctx context.Context, siteURL string, action parsedAction) models.ActionResult {
	var err error
	switch action.Type {
	case "update_page":
		if action.PageID == "" || action.Updates == nil {
			return models.ActionResult{Type: action.Type, Success: false, Error: "update_page requires pageId and updates"}
		}
		err = e.site.UpdatePage(ctx, siteURL, action.PageID, action.Updates.toMap())
	case "update_settings":
		if action.Settings == nil {
			return models.ActionResult{Type: action.Type, Success: false, Error: "update_settings requires settings"}
		}
		err = e.site.UpdateSettings(ctx, siteURL, action.Settings.toMap())
	case "create_page":
		if action.Page == nil || action.Page.Title == "" {
			return models.ActionResult{Type: action.Type, Success: false, Error: "create_page requires page.title"}
		}
		status := action.Page.Status
		if status == "" {
			status = "publish"
		}
		_, err = e.site.CreatePage(ctx, siteURL, action.Page.Title, action.Page.Content, action.Page.Slug, status)
	default:
		return models.ActionResult{Type: action.Type, Success: false, Error: "unknown action type"}
	}

	if err != nil {
		return models.ActionResult{Type: action.Type, Success: false, Error: err.Error()}
	}
	return models.ActionResult{Type: action.Type, Success: true}
}

func (u *pageUpdates) toMap() map[string]string {
	out := map[string]string{}
	if u.Title != nil {
		out["title"] = *u.Title
	}
	if u.Content != nil {
		out["content"] = *u.Content
	}
	if u.Slug != nil {
		out["slug"] = *u.Slug
	}
	if u.Status != nil {
		out["status"] = *u.Status
	}
	return out
}

func (s *settingsUpdate) toMap() map[string]string {
	out := map[string]string{}
	if s.Title != nil {
		out["title"] = *s.Title
	}
	if s.Tagline != nil {
		out["tagline"] = *s.Tagline
	}
	return out
}
