package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	legacy "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/example/go-genstudio/internal/provider"
)

// sdkText adapts the generative-ai-go client.
type sdkText struct {
	client *legacy.Client
}

func (s *sdkText) model(req textRequest) *legacy.GenerativeModel {
	m := s.client.GenerativeModel(req.Model)
	m.SafetySettings = legacySafetySettings()
	if req.Schema != nil {
		m.ResponseMIMEType = "application/json"
		m.ResponseSchema = req.Schema
	}
	return m
}

func textParts(req textRequest) []legacy.Part {
	parts := make([]legacy.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, legacy.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}
	return append(parts, legacy.Text(req.Prompt))
}

func (s *sdkText) Generate(ctx context.Context, req textRequest) (string, error) {
	resp, err := s.model(req).GenerateContent(ctx, textParts(req)...)
	if err != nil {
		return "", wrapTextError(err)
	}
	return responseText(resp), nil
}

func (s *sdkText) Stream(ctx context.Context, req textRequest, onChunk func(string)) (string, error) {
	iter := s.model(req).GenerateContentStream(ctx, textParts(req)...)

	var b strings.Builder
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return b.String(), wrapTextError(err)
		}

		chunk := responseText(resp)
		b.WriteString(chunk)
		if onChunk != nil && chunk != "" {
			onChunk(chunk)
		}
	}
	return b.String(), nil
}

func (s *sdkText) Close() error {
	return s.client.Close()
}

func responseText(resp *legacy.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(legacy.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

// wrapTextError maps blocked responses to safety errors and REST failures to
// *provider.APIError.
func wrapTextError(err error) error {
	var blocked *legacy.BlockedError
	if errors.As(err, &blocked) {
		return provider.SafetyBlockError("The request was blocked for safety reasons. Try rephrasing the idea. Details: " + blocked.Error())
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		apiErr := &provider.APIError{Code: gerr.Code, Message: gerr.Message}
		var body struct {
			Error struct {
				Status string `json:"status"`
			} `json:"error"`
		}
		if json.Unmarshal([]byte(gerr.Body), &body) == nil {
			apiErr.Status = body.Error.Status
		}
		return apiErr
	}
	return wrapAPIError(err)
}

// decodeJSON parses a structured response, tolerating a Markdown code fence.
func decodeJSON(text string, v any) error {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), v); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	return nil
}
