// Package httpsig implements the HTTP signature scheme used between federated
// directories (draft-cavage style, rsa-sha256 over "(request-target) host
// date digest"). Outgoing envelopes are signed with the local actor's private
// key; inbound ones are checked against the claimed actor's public key.
package httpsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const signedHeaders = "(request-target) host date digest"

// Sign adds Date, Digest and Signature headers to req. keyID names the key in
// the sender's actor document, e.g. "https://dir.example/relay#main-key".
func Sign(req *http.Request, keyID string, key *rsa.PrivateKey, body []byte) error {
	if req.Header.Get("Date") == "" {
		req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	req.Header.Set("Digest", digest(body))

	signingString := buildSigningString(req)
	hashed := sha256.Sum256([]byte(signingString))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hashed[:])
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	req.Header.Set("Signature", fmt.Sprintf(
		`keyId="%s",algorithm="rsa-sha256",headers="%s",signature="%s"`,
		keyID, signedHeaders, base64.StdEncoding.EncodeToString(sig)))
	return nil
}

// Verify checks the Signature and Digest headers of an inbound request
// against pub. It returns the keyId named in the signature so the caller can
// confirm it belongs to the claimed actor.
func Verify(req *http.Request, pub *rsa.PublicKey, body []byte) (keyID string, err error) {
	params := parseSignatureHeader(req.Header.Get("Signature"))
	sigB64, ok := params["signature"]
	if !ok {
		return "", fmt.Errorf("no signature header")
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return "", fmt.Errorf("malformed signature: %w", err)
	}

	if d := req.Header.Get("Digest"); d != "" && d != digest(body) {
		return "", fmt.Errorf("digest mismatch")
	}

	signingString := buildSigningString(req)
	hashed := sha256.Sum256([]byte(signingString))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, hashed[:], sig); err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}
	return params["keyId"], nil
}

// KeyID extracts the keyId of an inbound request without verifying it, so the
// handler can resolve the actor whose key to verify against.
func KeyID(req *http.Request) string {
	return parseSignatureHeader(req.Header.Get("Signature"))["keyId"]
}

func digest(body []byte) string {
	sum := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
}

func buildSigningString(req *http.Request) string {
	target := strings.ToLower(req.Method) + " " + req.URL.RequestURI()
	lines := []string{
		"(request-target): " + target,
		"host: " + req.Host,
		"date: " + req.Header.Get("Date"),
		"digest: " + req.Header.Get("Digest"),
	}
	return strings.Join(lines, "\n")
}

func parseSignatureHeader(header string) map[string]string {
	params := map[string]string{}
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		params[k] = strings.Trim(v, `"`)
	}
	return params
}
