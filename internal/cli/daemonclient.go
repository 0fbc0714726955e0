package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dz-core/serviceability/pkg/facade"
)

// unixDaemonClient implements facade.DaemonClient over the local
// provisioning daemon's unix socket: an http.Client whose transport
// dials the socket path instead of a TCP address, matching the
// transport detail facade.DaemonClient's doc comment describes.
type unixDaemonClient struct {
	http *http.Client
}

var _ facade.DaemonClient = (*unixDaemonClient)(nil)

func newUnixDaemonClient(socketPath string) *unixDaemonClient {
	return &unixDaemonClient{
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

func (c *unixDaemonClient) do(method, path string, req any) (facade.DaemonResponse, error) {
	var resp facade.DaemonResponse

	body, err := facade.EncodeFramed(req)
	if err != nil {
		return resp, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequest(method, "http://unix"+path, bytes.NewReader(body))
	if err != nil {
		return resp, fmt.Errorf("build request: %w", err)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return resp, fmt.Errorf("daemon request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return resp, fmt.Errorf("read response: %w", err)
	}
	if err := facade.DecodeFramed(respBody, &resp); err != nil {
		return resp, fmt.Errorf("decode response: %w", err)
	}
	if httpResp.StatusCode >= 400 {
		return resp, fmt.Errorf("daemon returned %d: %s", httpResp.StatusCode, resp.Description)
	}
	return resp, nil
}

func (c *unixDaemonClient) PutConfig(req facade.ConfigRequest) (facade.DaemonResponse, error) {
	return c.do(http.MethodPut, "/config", req)
}

func (c *unixDaemonClient) Provision(req facade.ProvisionRequest) (facade.DaemonResponse, error) {
	return c.do(http.MethodPost, "/provision", req)
}
