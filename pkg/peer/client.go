package peer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/storage"
)

const (
	// HeaderAgentID names the sending agent.
	HeaderAgentID = "X-Agent-Id"
	// HeaderSignature carries the sender's hex signature over SigningPayload.
	HeaderSignature = "X-Agent-Signature"
	// HeaderTimestamp carries the unix time in seconds at which the request was signed.
	HeaderTimestamp = "X-Agent-Timestamp"
)

// Signer signs outgoing requests.
type Signer interface {
	AgentID() models.AgentID
	Sign(msg []byte) []byte
}

// SigningPayload is the byte string a request signature covers. timestamp is the
// HeaderTimestamp value, so a captured request stops verifying once it is too old.
func SigningPayload(method, requestURI, timestamp string, body []byte) []byte {
	var b bytes.Buffer
	b.WriteString(method)
	b.WriteByte('\n')
	b.WriteString(requestURI)
	b.WriteByte('\n')
	b.WriteString(timestamp)
	b.WriteByte('\n')
	b.Write(body)
	return b.Bytes()
}

// Client talks to other agents' runtimes over HTTP.
type Client struct {
	Self  Signer
	Peers map[models.AgentID]string
	HTTP  *http.Client
	// Now stamps outgoing requests. It defaults to time.Now.
	Now func() time.Time
}

// NewClient creates a Client. peers maps agent ids to base URLs.
func NewClient(self Signer, peers map[models.AgentID]string, timeout time.Duration) *Client {
	return &Client{
		Self:  self,
		Peers: peers,
		HTTP:  &http.Client{Timeout: timeout},
		Now:   time.Now,
	}
}

// Make sure we conform to the interfaces
var (
	_ Messenger            = (*Client)(nil)
	_ storage.ChainFetcher = (*Client)(nil)
)

// SendOffer delivers a new offer to its creditor.
func (c *Client) SendOffer(ctx context.Context, to models.AgentID, tx models.Transaction) error {
	return c.do(ctx, to, http.MethodPost, "/peer/offers", OfferMessage{Transaction: tx}, nil)
}

// QueryConsent asks for the other side's view of an offer.
func (c *Client) QueryConsent(ctx context.Context, to models.AgentID, offerID string) (*ConsentReply, error) {
	var reply ConsentReply
	if err := c.do(ctx, to, http.MethodGet, "/peer/offers/"+url.PathEscape(offerID)+"/consent", nil, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// SendCancel tells the other side the offer was canceled.
func (c *Client) SendCancel(ctx context.Context, to models.AgentID, offerID string) error {
	return c.do(ctx, to, http.MethodPost, "/peer/offers/"+url.PathEscape(offerID)+"/cancel", nil, nil)
}

// RequestCommit asks the debtor to commit the offer.
func (c *Client) RequestCommit(ctx context.Context, to models.AgentID, req CommitRequest) (*CommitReply, error) {
	var reply CommitReply
	if err := c.do(ctx, to, http.MethodPost, "/peer/offers/"+url.PathEscape(req.OfferID)+"/commit", req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// SendAttestation hands the debtor the creditor's entry for a completed offer.
func (c *Client) SendAttestation(ctx context.Context, to models.AgentID, req AttestRequest) error {
	return c.do(ctx, to, http.MethodPost, "/peer/offers/"+url.PathEscape(req.OfferID)+"/attest", req, nil)
}

// FetchChainSince reads agent's chain from its own runtime.
func (c *Client) FetchChainSince(ctx context.Context, agent models.AgentID, since *models.ChainHeader) ([]models.ChainEntry, error) {
	path := "/peer/chain"
	if since != nil {
		path += "?since=" + url.QueryEscape(since.Address)
	}
	var entries []models.ChainEntry
	if err := c.do(ctx, agent, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) do(ctx context.Context, to models.AgentID, method, path string, in, out any) error {
	base, ok := c.Peers[to]
	if !ok {
		return fmt.Errorf("%w: no address known for %s", ErrUnreachable, to)
	}

	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	timestamp := strconv.FormatInt(now().Unix(), 10)
	req.Header.Set(HeaderAgentID, string(c.Self.AgentID()))
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderSignature, hex.EncodeToString(c.Self.Sign(SigningPayload(method, req.URL.RequestURI(), timestamp, body))))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &RemoteError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
