package integration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// DefaultGoogleScopes are requested when no scopes are configured.
var DefaultGoogleScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/userinfo.email",
}

// GoogleProvider implements the Google OAuth flow via golang.org/x/oauth2 and
// serves Gmail/Calendar tools through the official API clients.
type GoogleProvider struct {
	desc   *Descriptor
	client *http.Client
	cfg    *oauth2.Config
}

func NewGoogleProvider(d *Descriptor, client *http.Client) *GoogleProvider {
	if d.AuthURL == "" {
		d.AuthURL = google.Endpoint.AuthURL
	}
	if d.TokenURL == "" {
		d.TokenURL = google.Endpoint.TokenURL
	}
	if len(d.Scopes) == 0 {
		d.Scopes = DefaultGoogleScopes
	}
	return &GoogleProvider{
		desc:   d,
		client: client,
		cfg: &oauth2.Config{
			ClientID:     d.ClientID,
			ClientSecret: d.ClientSecret,
			RedirectURL:  d.RedirectURI,
			Scopes:       d.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  d.AuthURL,
				TokenURL: d.TokenURL,
			},
		},
	}
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) AuthorizationURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// serviceOptions returns the API client options, honoring the test endpoint
// override in the descriptor.
func (p *GoogleProvider) serviceOptions(base ...option.ClientOption) []option.ClientOption {
	opts := base
	if p.desc.APIBaseURL != "" {
		opts = append(opts, option.WithEndpoint(p.desc.APIBaseURL))
	}
	return opts
}

// Exchange trades the authorization code for a token and enriches the
// payload with the account email from the userinfo endpoint.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (json.RawMessage, error) {
	// Route the oauth2 exchange through the registry's bounded-timeout client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			detail := re.ErrorCode
			if detail == "" {
				detail = strings.TrimSpace(string(re.Body))
			}
			return nil, &ExchangeError{Integration: "google", Detail: detail}
		}
		return nil, &ExchangeError{Integration: "google", Detail: err.Error(), Temporary: true}
	}

	svc, err := goauth2.NewService(ctx, p.serviceOptions(option.WithHTTPClient(p.cfg.Client(ctx, tok)))...)
	if err != nil {
		return nil, &ExchangeError{Integration: "google", Detail: fmt.Sprintf("create oauth2 service: %v", err)}
	}
	userinfo, err := svc.Userinfo.Get().Do()
	if err != nil {
		return nil, &ExchangeError{Integration: "google", Detail: fmt.Sprintf("get user info: %v", err)}
	}

	payload, err := json.Marshal(map[string]any{
		"access_token":  tok.AccessToken,
		"refresh_token": tok.RefreshToken,
		"token_type":    tok.TokenType,
		"expiry":        tok.Expiry.UTC().Format(time.RFC3339),
		"email":         userinfo.Email,
		"scope":         strings.Join(p.desc.Scopes, " "),
		"created_at":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, &ExchangeError{Integration: "google", Detail: fmt.Sprintf("encode credential: %v", err)}
	}
	return payload, nil
}

func (p *GoogleProvider) CallTool(ctx context.Context, credential json.RawMessage, tool string, args map[string]any) (any, error) {
	var cred struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(credential, &cred); err != nil || cred.AccessToken == "" {
		return nil, &ProviderError{Integration: "google", Detail: "stored credential has no access token"}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.AccessToken})
	authed := oauth2.NewClient(ctx, src)

	var (
		result any
		err    error
	)

	switch tool {
	case "list_gmail_messages":
		var svc *gmail.Service
		svc, err = gmail.NewService(ctx, p.serviceOptions(option.WithHTTPClient(authed))...)
		if err == nil {
			call := svc.Users.Messages.List("me").MaxResults(intArg(args, "max_results", 10))
			if q := stringArg(args, "query"); q != "" {
				call = call.Q(q)
			}
			result, err = call.Context(ctx).Do()
		}
	case "get_gmail_message":
		id := stringArg(args, "message_id")
		if id == "" {
			return nil, fmt.Errorf("get_gmail_message requires message_id")
		}
		var svc *gmail.Service
		svc, err = gmail.NewService(ctx, p.serviceOptions(option.WithHTTPClient(authed))...)
		if err == nil {
			result, err = svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		}
	case "send_gmail_message":
		to := stringArg(args, "to")
		subject := stringArg(args, "subject")
		body := stringArg(args, "body")
		if to == "" {
			return nil, fmt.Errorf("send_gmail_message requires to")
		}
		raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s", to, subject, body)
		msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw))}
		var svc *gmail.Service
		svc, err = gmail.NewService(ctx, p.serviceOptions(option.WithHTTPClient(authed))...)
		if err == nil {
			result, err = svc.Users.Messages.Send("me", msg).Context(ctx).Do()
		}
	case "list_calendar_events":
		var svc *calendar.Service
		svc, err = calendar.NewService(ctx, p.serviceOptions(option.WithHTTPClient(authed))...)
		if err == nil {
			call := svc.Events.List("primary").
				MaxResults(intArg(args, "max_results", 10)).
				SingleEvents(true).
				OrderBy("startTime")
			timeMin := stringArg(args, "time_min")
			if timeMin == "" {
				timeMin = time.Now().UTC().Format(time.RFC3339)
			}
			result, err = call.TimeMin(timeMin).Context(ctx).Do()
		}
	case "create_calendar_event":
		summary := stringArg(args, "summary")
		start := stringArg(args, "start")
		end := stringArg(args, "end")
		if summary == "" || start == "" || end == "" {
			return nil, fmt.Errorf("create_calendar_event requires summary, start and end")
		}
		event := &calendar.Event{
			Summary:     summary,
			Description: stringArg(args, "description"),
			Start:       &calendar.EventDateTime{DateTime: start},
			End:         &calendar.EventDateTime{DateTime: end},
		}
		var svc *calendar.Service
		svc, err = calendar.NewService(ctx, p.serviceOptions(option.WithHTTPClient(authed))...)
		if err == nil {
			result, err = svc.Events.Insert("primary", event).Context(ctx).Do()
		}
	default:
		return nil, fmt.Errorf("google has no tool %q: %w", tool, ErrUnknownTool)
	}

	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Integration: "google", Detail: fmt.Sprintf("status %d: %s", apiErr.Code, apiErr.Message)}
		}
		return nil, &ProviderError{Integration: "google", Detail: err.Error()}
	}
	return result, nil
}
