package federation

import (
	"bytes"
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"time"

	"github.com/worldindex/core/internal/pkg/httpsig"
)

// Deliverer posts a signed activity document to one remote inbox.
type Deliverer interface {
	Deliver(ctx context.Context, inbox string, body []byte) error
}

// httpDeliverer signs outgoing envelopes with the system actor's key and
// POSTs them over plain HTTP.
type httpDeliverer struct {
	client *http.Client
	keyID  string
	key    *rsa.PrivateKey
}

// NewHTTPDeliverer builds the production deliverer. keyID names the signing
// key in the local actor document.
func NewHTTPDeliverer(keyID string, key *rsa.PrivateKey) Deliverer {
	return &httpDeliverer{
		client: &http.Client{Timeout: 10 * time.Second},
		keyID:  keyID,
		key:    key,
	}
}

func (d *httpDeliverer) Deliver(ctx context.Context, inbox string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inbox, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("Accept", ContentType)
	if err := httpsig.Sign(req, d.keyID, d.key, body); err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("inbox %s returned %d", inbox, resp.StatusCode)
	}
	return nil
}
