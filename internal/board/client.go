package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"qmflow/internal/models"
)

// Client talks to the qmflow API on behalf of one user. Every mutating call
// carries the X-User-ID header so the server can consult the permission
// oracle.
type Client struct {
	base   string
	userID string
	http   *http.Client
}

func NewClient(base, userID string) *Client {
	return &Client{
		base:   base,
		userID: userID,
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeAPIError(resp *http.Response) error {
	var body apiErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Message == "" {
		return fmt.Errorf("api responded %s", resp.Status)
	}
	return fmt.Errorf("%s (%s)", body.Error.Message, body.Error.Code)
}

func (c *Client) Documents(ctx context.Context) ([]models.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/documents", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	var body struct {
		Documents []models.Document `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return body.Documents, nil
}

func (c *Client) Transition(ctx context.Context, documentID string, target models.WorkflowStatus, comment string) error {
	payload, err := json.Marshal(map[string]string{
		"target_status": string(target),
		"comment":       comment,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/documents/"+documentID+"/transition", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", c.userID)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("transition %s: %w", documentID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return nil
}
