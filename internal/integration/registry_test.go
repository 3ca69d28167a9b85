package integration

import (
	"errors"
	"testing"
)

func slackDescriptor() *Descriptor {
	return &Descriptor{
		Name:         "slack",
		ClientID:     "slack-cid",
		ClientSecret: "slack-secret",
		RedirectURI:  "https://relay.example/slack/oauth/callback",
	}
}

func googleDescriptor() *Descriptor {
	return &Descriptor{
		Name:         "google",
		ClientID:     "google-cid",
		ClientSecret: "google-secret",
		RedirectURI:  "https://relay.example/google/oauth/callback",
	}
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry([]*Descriptor{slackDescriptor(), googleDescriptor()}, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "google" || names[1] != "slack" {
		t.Fatalf("Names() = %v", names)
	}

	for _, name := range names {
		if _, err := r.Describe(name); err != nil {
			t.Errorf("Describe(%q): %v", name, err)
		}
		p, err := r.Provider(name)
		if err != nil {
			t.Errorf("Provider(%q): %v", name, err)
			continue
		}
		if p.Name() != name {
			t.Errorf("Provider(%q).Name() = %q", name, p.Name())
		}
	}
}

func TestNewRegistryAppliesDefaults(t *testing.T) {
	d := slackDescriptor()
	if _, err := NewRegistry([]*Descriptor{d}, nil); err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if d.AuthURL == "" || d.TokenURL == "" {
		t.Fatalf("endpoint defaults not applied: %+v", d)
	}
	if len(d.Scopes) == 0 {
		t.Fatal("scope defaults not applied")
	}
}

func TestNewRegistryRejectsIncompleteConfig(t *testing.T) {
	cases := []struct {
		name string
		desc *Descriptor
	}{
		{"missing name", &Descriptor{ClientID: "a", ClientSecret: "b", RedirectURI: "c"}},
		{"missing client id", &Descriptor{Name: "slack", ClientSecret: "b", RedirectURI: "c"}},
		{"missing client secret", &Descriptor{Name: "slack", ClientID: "a", RedirectURI: "c"}},
		{"missing redirect uri", &Descriptor{Name: "slack", ClientID: "a", ClientSecret: "b"}},
		{"unsupported integration", &Descriptor{Name: "notion", ClientID: "a", ClientSecret: "b", RedirectURI: "c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRegistry([]*Descriptor{tc.desc}, nil); err == nil {
				t.Fatal("expected construction error")
			}
		})
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry([]*Descriptor{slackDescriptor(), slackDescriptor()}, nil); err == nil {
		t.Fatal("expected duplicate error")
	}
}

func TestRegistryUnknownIntegration(t *testing.T) {
	r, err := NewRegistry([]*Descriptor{slackDescriptor()}, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if _, err := r.Describe("notion"); !errors.Is(err, ErrUnknownIntegration) {
		t.Fatalf("Describe: got %v, want ErrUnknownIntegration", err)
	}
	if _, err := r.Provider("notion"); !errors.Is(err, ErrUnknownIntegration) {
		t.Fatalf("Provider: got %v, want ErrUnknownIntegration", err)
	}
}
