package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	slackAuthURL    = "https://slack.com/oauth/v2/authorize"
	slackTokenURL   = "https://slack.com/api/oauth.v2.access"
	slackAPIBaseURL = "https://slack.com/api"
)

// DefaultSlackScopes are requested when no scopes are configured.
var DefaultSlackScopes = []string{"chat:write", "channels:read", "groups:read", "im:read", "mpim:read"}

// slackTools maps gateway tool names to Slack Web API methods.
var slackTools = map[string]string{
	"send_message":      "chat.postMessage",
	"update_message":    "chat.update",
	"delete_message":    "chat.delete",
	"schedule_message":  "chat.scheduleMessage",
	"list_channels":     "conversations.list",
	"channel_info":      "conversations.info",
	"channel_history":   "conversations.history",
	"thread_replies":    "conversations.replies",
	"join_channel":      "conversations.join",
	"leave_channel":     "conversations.leave",
	"set_channel_topic": "conversations.setTopic",
}

// SlackProvider implements the Slack OAuth v2 flow and bot-token Web API
// calls. Slack's token endpoint reports failures as HTTP 200 with
// {"ok": false}, so the exchange is done with a plain form POST rather than
// the oauth2 package.
type SlackProvider struct {
	desc    *Descriptor
	client  *http.Client
	apiBase string
}

func NewSlackProvider(d *Descriptor, client *http.Client) *SlackProvider {
	if d.AuthURL == "" {
		d.AuthURL = slackAuthURL
	}
	if d.TokenURL == "" {
		d.TokenURL = slackTokenURL
	}
	if len(d.Scopes) == 0 {
		d.Scopes = DefaultSlackScopes
	}
	apiBase := d.APIBaseURL
	if apiBase == "" {
		apiBase = slackAPIBaseURL
	}
	return &SlackProvider{desc: d, client: client, apiBase: apiBase}
}

func (p *SlackProvider) Name() string { return "slack" }

// AuthorizationURL builds the Slack consent URL. Slack expects comma-joined
// scopes.
func (p *SlackProvider) AuthorizationURL(state string) string {
	q := url.Values{}
	q.Set("client_id", p.desc.ClientID)
	q.Set("scope", strings.Join(p.desc.Scopes, ","))
	q.Set("redirect_uri", p.desc.RedirectURI)
	q.Set("state", state)
	return p.desc.AuthURL + "?" + q.Encode()
}

type slackTokenResponse struct {
	OK          bool   `json:"ok"`
	Error       string `json:"error"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	BotUserID   string `json:"bot_user_id"`
	AppID       string `json:"app_id"`
	AuthedUser  struct {
		ID string `json:"id"`
	} `json:"authed_user"`
	Team struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"team"`
	Enterprise          any  `json:"enterprise"`
	IsEnterpriseInstall bool `json:"is_enterprise_install"`
}

// Exchange trades the authorization code for a bot token via
// oauth.v2.access and enriches the stored payload with workspace metadata.
func (p *SlackProvider) Exchange(ctx context.Context, code string) (json.RawMessage, error) {
	form := url.Values{}
	form.Set("client_id", p.desc.ClientID)
	form.Set("client_secret", p.desc.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", p.desc.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.desc.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &ExchangeError{Integration: "slack", Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ExchangeError{Integration: "slack", Detail: err.Error(), Temporary: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &ExchangeError{
			Integration: "slack",
			Detail:      fmt.Sprintf("token endpoint returned status %d", resp.StatusCode),
			Temporary:   true,
		}
	}

	var tr slackTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, &ExchangeError{Integration: "slack", Detail: fmt.Sprintf("decode token response: %v", err)}
	}
	if !tr.OK {
		detail := tr.Error
		if detail == "" {
			detail = "unknown error"
		}
		return nil, &ExchangeError{Integration: "slack", Detail: detail}
	}
	if tr.AccessToken == "" {
		return nil, &ExchangeError{Integration: "slack", Detail: "no access token in response"}
	}

	payload, err := json.Marshal(map[string]any{
		"access_token":          tr.AccessToken,
		"token_type":            tr.TokenType,
		"scope":                 tr.Scope,
		"team_id":               tr.Team.ID,
		"team_name":             tr.Team.Name,
		"slack_user_id":         tr.AuthedUser.ID,
		"bot_user_id":           tr.BotUserID,
		"app_id":                tr.AppID,
		"enterprise":            tr.Enterprise,
		"is_enterprise_install": tr.IsEnterpriseInstall,
		"created_at":            time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, &ExchangeError{Integration: "slack", Detail: fmt.Sprintf("encode credential: %v", err)}
	}
	return payload, nil
}

// CallTool maps a gateway tool name to a Slack Web API method and invokes it
// with the stored bot token.
func (p *SlackProvider) CallTool(ctx context.Context, credential json.RawMessage, tool string, args map[string]any) (any, error) {
	method, ok := slackTools[tool]
	if !ok {
		return nil, fmt.Errorf("slack has no tool %q: %w", tool, ErrUnknownTool)
	}

	var cred struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(credential, &cred); err != nil || cred.AccessToken == "" {
		return nil, &ProviderError{Integration: "slack", Detail: "stored credential has no access token"}
	}

	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode tool arguments: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Integration: "slack", Detail: err.Error()}
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ProviderError{Integration: "slack", Detail: fmt.Sprintf("decode %s response: %v", method, err)}
	}

	if ok, _ := result["ok"].(bool); !ok {
		detail, _ := result["error"].(string)
		if detail == "" {
			detail = fmt.Sprintf("%s returned status %d", method, resp.StatusCode)
		}
		return nil, &ProviderError{Integration: "slack", Detail: detail}
	}

	return result, nil
}
