package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nimogit/beacon/internal/log"
	"github.com/nimogit/beacon/internal/request"
	"github.com/nimogit/beacon/pkg/errors"
)

// Transport performs the network call for one request. Implementations
// report plain success or failure; the dispatcher owns all retry policy.
type Transport interface {
	Send(ctx context.Context, values url.Values) bool
}

// HTTPTransport delivers requests as GET <serverURL>/i?<urlencoded fields>.
// A delivery counts as successful only when the collector answers with a 2xx
// status and a JSON body whose result field equals "Success"; anything else
// is a failure the dispatcher will retry.
type HTTPTransport struct {
	serverURL string
	salt      string
	client    *http.Client
}

// NewHTTPTransport creates a transport for the given collector. When salt is
// non-empty every request gains a checksum256 parameter, the hex SHA-256 of
// the encoded query string concatenated with the salt.
func NewHTTPTransport(serverURL, salt string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		serverURL: strings.TrimRight(serverURL, "/"),
		salt:      salt,
		client:    &http.Client{Timeout: timeout},
	}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, values url.Values) bool {
	raw := values.Encode()
	if t.salt != "" {
		sum := sha256.Sum256([]byte(raw + t.salt))
		raw += "&checksum256=" + hex.EncodeToString(sum[:])
	}

	endpoint := t.serverURL + "/i?" + raw

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		log.Errorf("failed to build collector request: %v", err)
		return false
	}
	req.Header.Set("User-Agent", request.SDKName+"/"+request.SDKVersion)

	resp, err := t.client.Do(req)
	if err != nil {
		log.Warnf("collector unreachable: %v", errors.TransportError("Delivery failed", err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warnf("collector answered status %d", resp.StatusCode)
		return false
	}

	var body struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Warnf("collector answered malformed body: %v", err)
		return false
	}
	if body.Result != "Success" {
		log.Warnf("collector rejected request: result=%q", body.Result)
		return false
	}

	return true
}
