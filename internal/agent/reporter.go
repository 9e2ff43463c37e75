package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fleetd/pkg/types"
)

const reportPath = "/api/nodes/report"

type reportClient struct {
	url   string
	login string
	http  *http.Client
}

func newReportClient(base, login string) *reportClient {
	return &reportClient{
		url:   strings.TrimRight(base, "/") + reportPath,
		login: login,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *reportClient) report(ctx context.Context, n types.Node) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.login != "" {
		req.Header.Set("X-Fleet-Login", c.login)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		return nil
	}
	var e types.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
		return fmt.Errorf("coordinator: %s (%d)", e.Error, resp.StatusCode)
	}
	return fmt.Errorf("coordinator: status %d", resp.StatusCode)
}
