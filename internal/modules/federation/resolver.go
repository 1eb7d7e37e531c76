package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/worldindex/core/internal/pkg/urlx"
)

// Resolver discovers remote actors and dereferences federation documents.
type Resolver struct {
	client *http.Client
}

func NewResolver() *Resolver {
	return &Resolver{client: &http.Client{Timeout: 10 * time.Second}}
}

type webfingerDoc struct {
	Subject string `json:"subject"`
	Links   []struct {
		Rel  string `json:"rel"`
		Type string `json:"type"`
		Href string `json:"href"`
	} `json:"links"`
}

// ResolveActor discovers a directory's actor from its domain via webfinger
// and fetches the actor document. Accepts bare domains and full URLs.
func (r *Resolver) ResolveActor(ctx context.Context, target string) (*ActorDoc, error) {
	host := urlx.Host(target)
	if host == "" {
		return nil, fmt.Errorf("cannot resolve actor for %q", target)
	}

	wf := fmt.Sprintf("https://%s/.well-known/webfinger?resource=%s",
		host, url.QueryEscape("acct:relay@"+host))
	body, err := r.fetch(ctx, wf, "application/jrd+json")
	if err != nil {
		return nil, fmt.Errorf("webfinger %s: %w", host, err)
	}

	var doc webfingerDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("webfinger %s: %w", host, err)
	}
	for _, link := range doc.Links {
		if link.Rel == "self" && strings.Contains(link.Type, "activity+json") && link.Href != "" {
			return r.FetchActor(ctx, link.Href)
		}
	}
	return nil, fmt.Errorf("webfinger %s: no actor link", host)
}

// FetchActor dereferences an actor document by its identity URL.
func (r *Resolver) FetchActor(ctx context.Context, identity string) (*ActorDoc, error) {
	body, err := r.fetch(ctx, identity, ContentType)
	if err != nil {
		return nil, err
	}
	var doc ActorDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("actor %s: %w", identity, err)
	}
	if doc.ID == "" || doc.Inbox == "" {
		return nil, fmt.Errorf("actor %s: missing id or inbox", identity)
	}
	return &doc, nil
}

// FetchPage dereferences a listing document by its identity URL.
func (r *Resolver) FetchPage(ctx context.Context, identity string) (*Page, error) {
	body, err := r.fetch(ctx, identity, ContentType)
	if err != nil {
		return nil, err
	}
	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("page %s: %w", identity, err)
	}
	if page.ID == "" {
		return nil, fmt.Errorf("page %s: missing id", identity)
	}
	return &page, nil
}

func (r *Resolver) fetch(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
