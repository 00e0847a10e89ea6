// Package discord is a minimal Discord REST (v10) client covering the
// operations this service needs: guild member lookup, role grant and
// removal, and channel/direct messages.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Discord JSON error code for a user who is not a member of the guild.
const codeUnknownMember = 10007

// ErrUnknownMember is returned when the identity has no guild membership.
var ErrUnknownMember = errors.New("discord: unknown member")

// APIError is a non-2xx response from the Discord API.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord: %d (code %d): %s", e.Status, e.Code, e.Message)
}

// Member is the subset of a guild member object this service reads.
type Member struct {
	Roles []string `json:"roles"`
	User  struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

// Embed is a structured message payload.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// EmbedField is one name/value pair inside an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Client talks to the Discord REST API for a single guild.
type Client struct {
	http    *http.Client
	base    string
	token   string
	guildID string
}

// New creates a client. base is the API root (e.g. https://discord.com/api/v10);
// overridable for tests.
func New(base, botToken, guildID string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    base,
		token:   botToken,
		guildID: guildID,
	}
}

// GetMember fetches the guild member, or ErrUnknownMember when the identity
// is not in the guild.
func (c *Client) GetMember(ctx context.Context, userID string) (*Member, error) {
	var m Member
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/members/%s", c.guildID, userID), nil, "", &m)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeUnknownMember {
			return nil, ErrUnknownMember
		}
		return nil, err
	}
	return &m, nil
}

// MemberExists reports whether the identity has guild membership.
func (c *Client) MemberExists(ctx context.Context, userID string) (bool, error) {
	_, err := c.GetMember(ctx, userID)
	if errors.Is(err, ErrUnknownMember) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HasRole reports whether the member currently carries the role.
// ErrUnknownMember propagates so callers can treat absence distinctly.
func (c *Client) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	m, err := c.GetMember(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, r := range m.Roles {
		if r == roleID {
			return true, nil
		}
	}
	return false, nil
}

// AddRole grants a role to the member. Idempotent on the Discord side.
func (c *Client) AddRole(ctx context.Context, userID, roleID string) error {
	return c.do(ctx, http.MethodPut,
		fmt.Sprintf("/guilds/%s/members/%s/roles/%s", c.guildID, userID, roleID), nil, "", nil)
}

// RemoveRole removes a role from the member, attaching an audit-log reason.
func (c *Client) RemoveRole(ctx context.Context, userID, roleID, reason string) error {
	return c.do(ctx, http.MethodDelete,
		fmt.Sprintf("/guilds/%s/members/%s/roles/%s", c.guildID, userID, roleID), nil, reason, nil)
}

// ChannelMessage posts a plain-text message to a channel.
func (c *Client) ChannelMessage(ctx context.Context, channelID, content string) error {
	body := map[string]any{"content": content}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", channelID), body, "", nil)
}

// ChannelEmbed posts a structured embed to a channel.
func (c *Client) ChannelEmbed(ctx context.Context, channelID string, embed Embed) error {
	body := map[string]any{"embeds": []Embed{embed}}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", channelID), body, "", nil)
}

// DirectMessage opens (or reuses) the user's DM channel and sends content.
func (c *Client) DirectMessage(ctx context.Context, userID, content string) error {
	var ch struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels",
		map[string]any{"recipient_id": userID}, "", &ch); err != nil {
		return err
	}
	return c.ChannelMessage(ctx, ch.ID, content)
}

func (c *Client) do(ctx context.Context, method, path string, body any, reason string, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("discord: encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("discord: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reason != "" {
		req.Header.Set("X-Audit-Log-Reason", reason)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && resp.StatusCode != http.StatusNoContent {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("discord: decode response: %w", err)
			}
		}
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, apiErr)
	return apiErr
}
