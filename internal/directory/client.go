// Package directory implements the one-shot registration handshake with
// the GameOn map service.
package directory

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/gameontext/gameon-room-go/internal/config"
	"github.com/gameontext/gameon-room-go/internal/room"
	"github.com/gameontext/gameon-room-go/internal/signing"
)

// Signature header names defined by the GameOn map service.
const (
	headerID        = "gameon-id"
	headerDate      = "gameon-date"
	headerSigBody   = "gameon-sig-body"
	headerSignature = "gameon-signature"
)

// registrationPayload is the body POSTed to the sites endpoint.
type registrationPayload struct {
	Name              string            `json:"name"`
	FullName          string            `json:"fullName"`
	Description       string            `json:"description"`
	Doors             map[string]string `json:"doors"`
	ConnectionDetails connectionDetails `json:"connectionDetails"`
}

type connectionDetails struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

// Client registers a room with the directory. Registration is attempted
// exactly once at startup; failure leaves the room running but
// undiscoverable, which the caller treats as non-fatal.
type Client struct {
	cfg    config.DirectoryConfig
	logger *zap.Logger
	http   *http.Client
	now    func() time.Time
}

// NewClient creates a directory client.
//
// TLS verification is on by default; cfg.InsecureSkipVerify exists for
// talking to a locally running directory with a self-signed
// certificate and must stay off in production.
//
// Precondition: cfg must be validated; logger must be non-nil.
func NewClient(cfg config.DirectoryConfig, logger *zap.Logger) *Client {
	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		logger.Warn("directory TLS verification disabled; never use this outside local development")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		now: time.Now,
	}
}

// EnsureRegistered looks the room up in the directory and registers it
// when absent.
//
// Postcondition: Returns nil when the room is known to the directory
// (already registered, or registered by this call). Any error is a
// handshake failure the caller may log and ignore: the room still
// serves already-routed connections.
func (c *Client) EnsureRegistered(ctx context.Context, desc room.Descriptor) error {
	registered, err := c.lookup(ctx, desc.Name)
	if err != nil {
		return fmt.Errorf("directory lookup: %w", err)
	}
	if registered {
		c.logger.Info("room already registered with directory",
			zap.String("room", desc.Name),
			zap.String("owner", c.cfg.OwnerID),
		)
		return nil
	}
	return c.register(ctx, desc)
}

// lookup queries the sites endpoint for an existing registration with
// this room's name and owner. HTTP 200 means a match exists.
func (c *Client) lookup(ctx context.Context, name string) (bool, error) {
	query := url.Values{}
	query.Set("name", name)
	query.Set("owner", c.cfg.OwnerID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"?"+query.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("building lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json,text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}

// register POSTs the signed registration payload.
//
// The signature covers ownerId + timestamp + bodyHash, concatenated in
// that order, keyed by the shared secret. The directory recomputes the
// same HMAC to authenticate the request; the timestamp bounds replays.
func (c *Client) register(ctx context.Context, desc room.Descriptor) error {
	payload := registrationPayload{
		Name:        desc.Name,
		FullName:    desc.FullName,
		Description: desc.Description,
		Doors:       desc.Doors,
		ConnectionDetails: connectionDetails{
			Type:   "websocket",
			Target: c.cfg.CallbackURL,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling registration payload: %w", err)
	}

	bodyHash := signing.HashBody(string(body))
	timestamp := c.now().UTC().Format(time.RFC3339)
	sig := signing.Sign([]string{c.cfg.OwnerID, timestamp, bodyHash}, c.cfg.Key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json,text/plain")
	req.Header.Set(headerID, c.cfg.OwnerID)
	req.Header.Set(headerDate, timestamp)
	req.Header.Set(headerSigBody, bodyHash)
	req.Header.Set(headerSignature, sig)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting registration: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("registration rejected: status %d: %s", resp.StatusCode, respBody)
	}

	c.logger.Info("room registered with directory",
		zap.String("room", desc.Name),
		zap.String("endpoint", c.cfg.CallbackURL),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}
