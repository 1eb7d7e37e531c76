package federation

import (
	"encoding/json"
	"fmt"

	"github.com/worldindex/core/internal/models"
)

// ContentType is the media type for federation documents.
const ContentType = "application/activity+json"

// DefaultContext is the JSON-LD context attached to outgoing documents.
const DefaultContext = "https://www.w3.org/ns/activitystreams"

// Envelope is the wire form of a federation activity. The activity union is
// keyed explicitly on Type; anything but Follow/Create/Update is rejected at
// decode time rather than silently shape-matched.
type Envelope struct {
	Context interface{}     `json:"@context,omitempty"`
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Actor   string          `json:"actor"`
	Object  json.RawMessage `json:"object"`
}

// DecodeEnvelope parses an inbound activity and validates its discriminant.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed activity: %w", err)
	}
	switch env.Type {
	case models.ActivityFollow, models.ActivityCreate, models.ActivityUpdate:
	default:
		return nil, fmt.Errorf("unrecognized activity type %q", env.Type)
	}
	if env.ID == "" || env.Actor == "" {
		return nil, fmt.Errorf("activity missing id or actor")
	}
	return &env, nil
}

// ObjectID returns the object's identity whether the object is a bare URI
// string or an embedded document carrying an "id".
func (e *Envelope) ObjectID() (string, error) {
	var uri string
	if err := json.Unmarshal(e.Object, &uri); err == nil {
		return uri, nil
	}
	var embedded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(e.Object, &embedded); err != nil || embedded.ID == "" {
		return "", fmt.Errorf("activity object has no id")
	}
	return embedded.ID, nil
}

// EmbeddedPage returns the object as a Page document when one is inlined.
func (e *Envelope) EmbeddedPage() (*Page, bool) {
	var page Page
	if err := json.Unmarshal(e.Object, &page); err != nil {
		return nil, false
	}
	if page.ID == "" || page.Type != "Page" {
		return nil, false
	}
	return &page, true
}

// Page is the federated representation of a listing.
type Page struct {
	Context      interface{}  `json:"@context,omitempty"`
	Type         string       `json:"type"`
	AppID        int64        `json:"appId"`
	ID           string       `json:"id"`
	AttributedTo string       `json:"attributedTo"`
	To           []string     `json:"to"`
	Content      string       `json:"content"` // the listing's URL
	Name         string       `json:"name"`
	Summary      string       `json:"summary"`
	Image        *ImageObject `json:"image,omitempty"`
	Sensitive    bool         `json:"sensitive"`
	Tags         string       `json:"tags"`
}

// ImageObject is the attached image reference on a Page.
type ImageObject struct {
	Type      string `json:"type"`
	Href      string `json:"href"`
	MediaType string `json:"mediaType"`
}

// PageFromListing builds the wire document for a listing.
func PageFromListing(l *models.ListingModel) Page {
	page := Page{
		Type:    "Page",
		AppID:   l.ID,
		ID:      l.Identity,
		To:      []string{},
		Content: l.URL,
		Name:    l.Name,
		Summary: l.Description,
		Sensitive: l.Adult,
		Tags:    l.Tags,
	}
	if l.Image != "" && l.Image != models.ImageNone {
		page.Image = &ImageObject{Type: "Image", Href: l.Image, MediaType: "image/png"}
	}
	return page
}

// ActorDoc is the wire form of a relay actor.
type ActorDoc struct {
	Context           interface{}  `json:"@context,omitempty"`
	ID                string       `json:"id"`
	Type              string       `json:"type"`
	PreferredUsername string       `json:"preferredUsername"`
	Name              string       `json:"name"`
	Inbox             string       `json:"inbox"`
	Outbox            string       `json:"outbox"`
	PublicKey         PublicKeyDoc `json:"publicKey"`
}

// PublicKeyDoc carries an actor's signing key.
type PublicKeyDoc struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// ActorFromRelay builds the wire document for a relay row.
func ActorFromRelay(r *models.RelayModel) ActorDoc {
	return ActorDoc{
		Context:           DefaultContext,
		ID:                r.Identity,
		Type:              "Service",
		PreferredUsername: r.Name,
		Name:              r.Name,
		Inbox:             r.Inbox,
		Outbox:            r.Outbox,
		PublicKey: PublicKeyDoc{
			ID:           r.Identity + "#main-key",
			Owner:        r.Identity,
			PublicKeyPem: r.PublicKey,
		},
	}
}
