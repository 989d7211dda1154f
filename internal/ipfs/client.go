package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"soundstake-mint-release-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Which half of a mint upload failed. The orchestrator uses this to decide
// whether a retry re-uploads the asset or only the metadata.
const (
	UploadKindAsset    = "asset"
	UploadKindMetadata = "metadata"
)

// UploadError reports a content-store failure with enough detail for the
// caller to pick a retry strategy. StatusCode is zero for transport errors.
type UploadError struct {
	Kind       string
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s upload failed with status %d: %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s upload failed: %v", e.Kind, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// ErrGatewaysExhausted is returned when every configured read gateway
// failed to serve the requested content.
var ErrGatewaysExhausted = errors.New("content fetch failed on all gateways")

// pinResponse mirrors the pinning API response body.
type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// Client uploads assets and metadata to an IPFS pinning service and reads
// them back through a prioritized list of public gateways. Content is
// addressed, not named: callers must propagate whatever CID comes back and
// never assume two uploads of the same bytes yield the same CID.
type Client struct {
	httpClient http.Client
	apiBase    string
	jwt        string
	gateways   []string
}

func NewClient(cfg models.PinningConfig, gateways []string) (*Client, error) {
	if cfg.Jwt == "" {
		return nil, fmt.Errorf("pinning JWT cannot be empty")
	}
	if len(gateways) == 0 {
		return nil, fmt.Errorf("at least one read gateway is required")
	}

	httpClient, err := createCustomHttpClient(cfg.UploadTimeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	return &Client{
		httpClient: httpClient,
		apiBase:    strings.TrimSuffix(cfg.ApiBase, "/"),
		jwt:        cfg.Jwt,
		gateways:   gateways,
	}, nil
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

// PinFile uploads raw asset bytes and returns the CID assigned by the
// content store.
func (c *Client) PinFile(ctx context.Context, data []byte, filename, mimeType string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", &UploadError{Kind: UploadKindAsset, Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return "", &UploadError{Kind: UploadKindAsset, Err: err}
	}
	if err := writer.Close(); err != nil {
		return "", &UploadError{Kind: UploadKindAsset, Err: err}
	}

	cid, err := c.pin(ctx, "/pinning/pinFileToIPFS", &body, writer.FormDataContentType(), UploadKindAsset)
	if err != nil {
		return "", err
	}

	zap.L().Info("Asset pinned",
		zap.String("cid", cid),
		zap.String("filename", filename),
		zap.String("mime_type", mimeType),
		zap.Int("size_bytes", len(data)))
	return cid, nil
}

// PinJSON uploads a JSON document (token metadata) and returns its CID.
func (c *Client) PinJSON(ctx context.Context, v interface{}) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", &UploadError{Kind: UploadKindMetadata, Err: err}
	}

	cid, err := c.pin(ctx, "/pinning/pinJSONToIPFS", bytes.NewReader(payload), "application/json", UploadKindMetadata)
	if err != nil {
		return "", err
	}

	zap.L().Info("Metadata pinned", zap.String("cid", cid), zap.Int("size_bytes", len(payload)))
	return cid, nil
}

func (c *Client) pin(ctx context.Context, path string, body io.Reader, contentType, kind string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, body)
	if err != nil {
		return "", &UploadError{Kind: kind, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UploadError{Kind: kind, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &UploadError{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("pinning service rejected upload: %s", strings.TrimSpace(string(detail))),
		}
	}

	var pinned pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pinned); err != nil {
		return "", &UploadError{Kind: kind, Err: fmt.Errorf("unable to decode pin response: %w", err)}
	}
	if pinned.IpfsHash == "" {
		return "", &UploadError{Kind: kind, Err: fmt.Errorf("pin response missing content id")}
	}

	return pinned.IpfsHash, nil
}

// FetchJSON resolves a CID through the gateway list in order and decodes the
// first HTTP-200 response into out.
func (c *Client) FetchJSON(ctx context.Context, cid string, out interface{}) error {
	cid = strings.TrimPrefix(cid, "ipfs://")

	for _, gateway := range c.gateways {
		url := fmt.Sprintf(gateway, cid)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("unable to build gateway request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			zap.L().Debug("Gateway unreachable, trying next",
				zap.String("gateway", gateway),
				zap.Error(err))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			if err := resp.Body.Close(); err != nil {
				zap.L().Warn("Failed to close response body", zap.Error(err))
			}
			zap.L().Debug("Gateway returned non-200, trying next",
				zap.String("gateway", gateway),
				zap.Int("status", resp.StatusCode))
			continue
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		if closeErr := resp.Body.Close(); closeErr != nil {
			zap.L().Warn("Failed to close response body", zap.Error(closeErr))
		}
		if err != nil {
			zap.L().Debug("Gateway returned undecodable body, trying next",
				zap.String("gateway", gateway),
				zap.Error(err))
			continue
		}

		return nil
	}

	return fmt.Errorf("%w: %s", ErrGatewaysExhausted, cid)
}
