package gemini

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"google.golang.org/genai"

	"github.com/example/go-genstudio/internal/provider"
)

// StartVideo submits one video generation job.
func (c *Client) StartVideo(ctx context.Context, req provider.VideoRequest) (provider.VideoJob, error) {
	if err := req.Validate(); err != nil {
		return provider.VideoJob{}, err
	}

	model := req.Model
	if model == "" {
		model = c.cfg.VideoModel
	}

	cfg := &genai.GenerateVideosConfig{NumberOfVideos: 1}
	if req.Resolution != "" {
		cfg.Resolution = req.Resolution
	}
	if req.AspectRatio != "" {
		cfg.AspectRatio = string(req.AspectRatio)
	}

	var image *genai.Image
	if req.Image != nil {
		image = &genai.Image{ImageBytes: req.Image.Data, MIMEType: req.Image.MIMEType}
	}

	op, err := c.media.GenerateVideos(ctx, model, req.Prompt, image, cfg)
	if err != nil {
		return provider.VideoJob{}, err
	}
	return jobFromOperation(op)
}

// PollVideo refreshes the job state.
func (c *Client) PollVideo(ctx context.Context, job provider.VideoJob) (provider.VideoJob, error) {
	op, err := c.media.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: job.Name})
	if err != nil {
		return job, err
	}
	return jobFromOperation(op)
}

func jobFromOperation(op *genai.GenerateVideosOperation) (provider.VideoJob, error) {
	if op == nil {
		return provider.VideoJob{}, fmt.Errorf("video operation missing from response")
	}
	if len(op.Error) > 0 {
		return provider.VideoJob{}, fmt.Errorf("video generation failed: %v", op.Error["message"])
	}

	job := provider.VideoJob{Name: op.Name, Done: op.Done}
	if op.Done {
		if op.Response == nil || len(op.Response.GeneratedVideos) == 0 ||
			op.Response.GeneratedVideos[0] == nil || op.Response.GeneratedVideos[0].Video == nil ||
			op.Response.GeneratedVideos[0].Video.URI == "" {
			return job, fmt.Errorf("no download link in finished video operation %s", op.Name)
		}
		job.URI = op.Response.GeneratedVideos[0].Video.URI
	}
	return job, nil
}

// DownloadVideo fetches the finished video, authenticating with the API key.
func (c *Client) DownloadVideo(ctx context.Context, job provider.VideoJob) ([]byte, error) {
	if job.URI == "" {
		return nil, fmt.Errorf("video job %s has no download link", job.Name)
	}

	u, err := url.Parse(job.URI)
	if err != nil {
		return nil, fmt.Errorf("parse download link: %w", err)
	}
	q := u.Query()
	q.Set("key", c.cfg.APIKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &provider.APIError{Code: resp.StatusCode, Message: "could not download video: " + resp.Status}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read video body: %w", err)
	}
	return data, nil
}
