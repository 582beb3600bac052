// Package hint turns problem context and a chat history into tutoring
// responses through a generative-language REST API.
package hint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	pkgerrors "codearena/pkg/errors"
)

// ChatMessage is one turn of the tutoring conversation. Role is "user" or
// "model".
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces a model response for a system instruction plus chat
// history.
type Generator interface {
	GenerateContent(ctx context.Context, systemInstruction string, messages []ChatMessage) (string, error)
}

type ClientOptions struct {
	BaseURL string
	APIKey  string
	Model   string

	HTTPClient *http.Client
}

func (o *ClientOptions) setDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if o.Model == "" {
		o.Model = "gemini-1.5-flash"
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
}

// Client calls a Gemini-compatible generateContent endpoint.
type Client struct {
	opts ClientOptions
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("hint: api key is required")
	}
	opts.setDefaults()
	return &Client{opts: opts}, nil
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *generateContent  `json:"system_instruction,omitempty"`
	Contents          []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
}

func (c *Client) GenerateContent(ctx context.Context, systemInstruction string, messages []ChatMessage) (string, error) {
	payload := generateRequest{
		Contents: make([]generateContent, 0, len(messages)),
	}
	if systemInstruction != "" {
		payload.SystemInstruction = &generateContent{Parts: []generatePart{{Text: systemInstruction}}}
	}
	for _, message := range messages {
		payload.Contents = append(payload.Contents, generateContent{
			Role:  message.Role,
			Parts: []generatePart{{Text: message.Content}},
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.HintUnavailable, "encode generate request")
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.opts.BaseURL, c.opts.Model, url.QueryEscape(c.opts.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.HintUnavailable, "build generate request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.HintUnavailable, "generate request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", pkgerrors.New(pkgerrors.HintUnavailable).
			WithMessage(fmt.Sprintf("generate returned %d: %s", resp.StatusCode, string(data)))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.HintUnavailable, "decode generate response")
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", pkgerrors.New(pkgerrors.HintUnavailable).WithMessage("empty model response")
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

var _ Generator = (*Client)(nil)
