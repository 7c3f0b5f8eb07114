package directory

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dispatchd/pkg/types"
)

// Client talks to a directory server.
type Client struct {
	baseURL string
	// Intentionally no client-level timeout: the registration stream is
	// long-lived. Route calls bound themselves through their context.
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 0},
		log:        log,
	}
}

// Route asks the directory for a replica matching query, excluding at most
// one replica id. A 404 surfaces as a no-route error.
func (c *Client) Route(ctx context.Context, query types.Capability, exclude string) (types.RouteResponse, error) {
	var out types.RouteResponse
	params := url.Values{}
	for k, v := range query {
		params.Set(k, v)
	}
	if exclude != "" {
		params.Set("exclude_replica_id", exclude)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/route?"+params.Encode(), nil)
	if err != nil {
		return out, fmt.Errorf("directory route: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("directory route: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return out, noRouteError{query: query.String()}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return out, fmt.Errorf("directory route: %s: %s", resp.Status, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("directory route: decode: %w", err)
	}
	return out, nil
}

// Registry fetches the directory's current replica list.
func (c *Client) Registry(ctx context.Context) ([]types.ReplicaInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/registry", nil)
	if err != nil {
		return nil, fmt.Errorf("directory registry: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory registry: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory registry: %s", resp.Status)
	}
	var out types.RegistryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("directory registry: decode: %w", err)
	}
	return out.Replicas, nil
}

// Announcer keeps one replica registered with the directory. The entry's
// lifetime is the stream's lifetime, so Run reconnects until its context
// ends, and Notify forces a re-register when the offer set changes.
type Announcer struct {
	client    *Client
	replicaID string
	endpoint  string
	// offers snapshots the current capability set at (re)registration time.
	offers func() []types.Capability
	log    zerolog.Logger

	kick chan struct{}
}

func NewAnnouncer(client *Client, replicaID, endpoint string, offers func() []types.Capability, log zerolog.Logger) *Announcer {
	return &Announcer{
		client:    client,
		replicaID: replicaID,
		endpoint:  endpoint,
		offers:    offers,
		log:       log,
		kick:      make(chan struct{}, 1),
	}
}

// Notify schedules a re-registration with a fresh offer snapshot. Safe from
// any goroutine; wired as the registry change hook.
func (a *Announcer) Notify() {
	select {
	case a.kick <- struct{}{}:
	default:
	}
}

// Run maintains the registration stream until ctx ends.
func (a *Announcer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := a.announceOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			a.log.Warn().Err(err).Dur("retry_in", backoff).Msg("directory registration lost")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		} else {
			// Clean close (superseded by Notify); re-register immediately.
			backoff = time.Second
		}
	}
}

// announceOnce opens one registration stream and consumes keep-alives until
// the stream breaks or Notify asks for a refresh. A nil return means the
// stream was deliberately cycled.
func (a *Announcer) announceOnce(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Drain a stale kick so an old notification cannot kill the new stream.
	select {
	case <-a.kick:
	default:
	}
	go func() {
		select {
		case <-a.kick:
			cancel()
		case <-streamCtx.Done():
		}
	}()

	body, err := json.Marshal(types.RegisterRequest{
		ReplicaID:    a.replicaID,
		Endpoint:     a.endpoint,
		Capabilities: a.offers(),
	})
	if err != nil {
		return fmt.Errorf("directory register: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, a.client.baseURL+"/register", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("directory register: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.httpClient.Do(req)
	if err != nil {
		if streamCtx.Err() != nil && ctx.Err() == nil {
			return nil
		}
		return fmt.Errorf("directory register: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("directory register: %s", resp.Status)
	}

	a.log.Info().Str("replica_id", a.replicaID).Msg("registered with directory")
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		// Keep-alive events carry no information beyond stream health.
	}
	if streamCtx.Err() != nil && ctx.Err() == nil {
		// Cycled by Notify.
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("directory stream: %w", err)
	}
	return fmt.Errorf("directory stream: closed by server")
}
