package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/example/go-genstudio/internal/imaging"
	"github.com/example/go-genstudio/internal/provider"
)

// upscaleMaxSide bounds the input sent for upscaling.
const upscaleMaxSide = 1024

// GenerateImages renders req.Count PNG images from an English prompt.
func (c *Client) GenerateImages(ctx context.Context, req provider.ImageRequest) ([]provider.Image, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("image prompt is required")
	}

	count := max(1, req.Count)
	cfg := &genai.GenerateImagesConfig{
		NumberOfImages: int32(count),
		OutputMIMEType: "image/png",
	}
	if req.AspectRatio != "" && req.AspectRatio != provider.AspectAuto {
		cfg.AspectRatio = string(req.AspectRatio)
	}

	resp, err := c.media.GenerateImages(ctx, c.cfg.ImageModel, req.Prompt, cfg)
	if err != nil {
		return nil, err
	}

	var images []provider.Image
	var filtered string
	if resp != nil {
		for _, gi := range resp.GeneratedImages {
			if gi == nil {
				continue
			}
			if gi.Image != nil && len(gi.Image.ImageBytes) > 0 {
				mime := gi.Image.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				images = append(images, provider.Image{Data: gi.Image.ImageBytes, MIMEType: mime})
			} else if gi.RAIFilteredReason != "" {
				filtered = gi.RAIFilteredReason
			}
		}
	}

	if len(images) == 0 {
		if filtered != "" {
			return nil, provider.SafetyBlockError("The model did not create an image. The request was blocked for safety reasons. Details: " + filtered)
		}
		return nil, provider.ErrNoImage
	}
	return images, nil
}

// editContent sends parts to the image editing model and returns the first
// inline image.
func (c *Client) editContent(ctx context.Context, action string, parts []*genai.Part) (provider.Image, error) {
	resp, err := c.media.GenerateContent(ctx, c.cfg.EditModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"IMAGE"},
			SafetySettings:     safetySettings(),
		})
	if err != nil {
		return provider.Image{}, err
	}

	if blob, ok := inlineData(resp); ok {
		mime := blob.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return provider.Image{Data: blob.Data, MIMEType: mime}, nil
	}
	return provider.Image{}, feedback(resp).Refusal("The model did not "+action+" the image.", provider.ErrNoImage)
}

func imagePart(img provider.Image) *genai.Part {
	return genai.NewPartFromBytes(img.Data, img.MIMEType)
}

// EditImage applies an instruction while enforcing the aspect ratio.
func (c *Client) EditImage(ctx context.Context, req provider.EditRequest) (provider.Image, error) {
	if strings.TrimSpace(req.Instruction) == "" {
		return provider.Image{}, fmt.Errorf("edit instruction is required")
	}
	return c.editContent(ctx, "edit", []*genai.Part{
		genai.NewPartFromText(editPrompt(req)),
		imagePart(req.Subject),
	})
}

// RestorePhoto repairs damage in an old photograph.
func (c *Client) RestorePhoto(ctx context.Context, req provider.RestoreRequest) (provider.Image, error) {
	return c.editContent(ctx, "restore", []*genai.Part{
		genai.NewPartFromText(restorePrompt(req)),
		imagePart(req.Image),
	})
}

// UpscaleImage enhances img. Inputs larger than 1024 pixels on a side are
// scaled down first.
func (c *Client) UpscaleImage(ctx context.Context, img provider.Image) (provider.Image, error) {
	small, err := imaging.FitWithin(img, upscaleMaxSide)
	if err != nil {
		return provider.Image{}, fmt.Errorf("prepare image for upscaling: %w", err)
	}
	return c.editContent(ctx, "upscale", []*genai.Part{
		genai.NewPartFromText(upscalePrompt),
		imagePart(small),
	})
}

// CompositeCharacters merges labeled character images into one scene.
func (c *Client) CompositeCharacters(ctx context.Context, req provider.CompositeRequest) (provider.Image, error) {
	if len(req.Characters) == 0 {
		return provider.Image{}, fmt.Errorf("select at least one character image")
	}
	if strings.TrimSpace(req.Description) == "" {
		return provider.Image{}, fmt.Errorf("compositing description is required")
	}
	return c.editContent(ctx, "composite", compositeParts(req))
}

func compositeParts(req provider.CompositeRequest) []*genai.Part {
	parts := []*genai.Part{genai.NewPartFromText(compositePrompt(req))}
	for _, ch := range req.Characters {
		parts = append(parts,
			genai.NewPartFromText(fmt.Sprintf("CHARACTER %d", ch.Number)),
			imagePart(ch.Image),
		)
	}
	if req.Background != nil {
		parts = append(parts, genai.NewPartFromText("BACKGROUND"), imagePart(*req.Background))
	}
	return parts
}
