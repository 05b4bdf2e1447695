package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

// ErrImageRejected is returned when SafeSearch flags an uploaded image as unsafe.
var ErrImageRejected = errors.New("image rejected: violates community guidelines")

// ImageScreener inspects an uploaded document before it leaves the server.
type ImageScreener interface {
	Screen(ctx context.Context, data []byte) error
}

type SafeSearchResult struct {
	Adult    string
	Violence string
	Racy     string
	Spoof    string
	Medical  string
}

func isUnsafeLikelyOrHigher(l string) bool {
	return l == "LIKELY" || l == "VERY_LIKELY"
}

func (r *SafeSearchResult) IsUnsafe() bool {
	return isUnsafeLikelyOrHigher(r.Adult) || isUnsafeLikelyOrHigher(r.Violence) || isUnsafeLikelyOrHigher(r.Racy)
}

// VisionScreener runs Vision SAFE_SEARCH_DETECTION on the image bytes.
type VisionScreener struct {
	svc *vision.Service
}

func NewVisionScreener(ctx context.Context, opts ...option.ClientOption) (*VisionScreener, error) {
	opts = append(opts, option.WithScopes(vision.CloudPlatformScope))
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &VisionScreener{svc: svc}, nil
}

// Detect returns the SafeSearch likelihoods for an inline image.
func (v *VisionScreener) Detect(ctx context.Context, data []byte) (*SafeSearchResult, error) {
	req := &vision.AnnotateImageRequest{
		Image: &vision.Image{Content: base64.StdEncoding.EncodeToString(data)},
		Features: []*vision.Feature{
			{Type: "SAFE_SEARCH_DETECTION"},
		},
	}

	resp, err := v.svc.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{req},
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Responses) == 0 || resp.Responses[0].SafeSearchAnnotation == nil {
		return &SafeSearchResult{}, nil
	}
	ss := resp.Responses[0].SafeSearchAnnotation
	return &SafeSearchResult{
		Adult:    ss.Adult,
		Violence: ss.Violence,
		Racy:     ss.Racy,
		Spoof:    ss.Spoof,
		Medical:  ss.Medical,
	}, nil
}

func (v *VisionScreener) Screen(ctx context.Context, data []byte) error {
	ss, err := v.Detect(ctx, data)
	if err != nil {
		return fmt.Errorf("safesearch: %w", err)
	}
	if ss.IsUnsafe() {
		return ErrImageRejected
	}
	return nil
}
