package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/newsmelody/api/internal/config"
	"github.com/newsmelody/api/internal/pipeline"
)

// YouTubeClient publishes rendered videos through the YouTube Data API
// using a long-lived OAuth refresh token. When no credentials are set the
// client hands back deterministic mock results so the rest of the pipeline
// stays exercisable in development.
type YouTubeClient struct {
	cfg        *config.YouTubeConfig
	tokenSrc   oauth2.TokenSource
	configured bool
}

func NewYouTubeClient(cfg *config.YouTubeConfig) *YouTubeClient {
	c := &YouTubeClient{cfg: cfg}
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return c
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	c.tokenSrc = oauthCfg.TokenSource(context.Background(), &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	})
	c.configured = true
	return c
}

// IsConfigured returns true if the client has valid configuration
func (c *YouTubeClient) IsConfigured() bool {
	return c.configured
}

func (c *YouTubeClient) service(ctx context.Context) (*youtube.Service, error) {
	return youtube.NewService(ctx, option.WithTokenSource(c.tokenSrc))
}

// Upload publishes a single video file and returns its id and watch URL.
// Quota exhaustion and server errors come back marked transient.
func (c *YouTubeClient) Upload(ctx context.Context, videoPath, title, description string, tags []string) (pipeline.PublishResult, error) {
	if !c.configured {
		return mockResult(c.cfg.Privacy), nil
	}

	svc, err := c.service(ctx)
	if err != nil {
		return pipeline.PublishResult{}, fmt.Errorf("youtube service: %w", err)
	}

	file, err := os.Open(videoPath)
	if err != nil {
		return pipeline.PublishResult{}, fmt.Errorf("open video %s: %w", videoPath, err)
	}
	defer file.Close()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: description,
			Tags:        tags,
			CategoryId:  c.cfg.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: c.cfg.Privacy,
		},
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	inserted, err := call.Media(file).Context(ctx).Do()
	if err != nil {
		return pipeline.PublishResult{}, classifyUploadError(err)
	}

	return pipeline.PublishResult{
		VideoID:    inserted.Id,
		URL:        "https://www.youtube.com/watch?v=" + inserted.Id,
		Visibility: c.cfg.Privacy,
	}, nil
}

func classifyUploadError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return pipeline.Transient(fmt.Errorf("youtube upload: %w", err))
		}
		return fmt.Errorf("youtube upload: %w", err)
	}
	if isNetworkTimeout(err) {
		return pipeline.Transient(fmt.Errorf("youtube upload: %w", err))
	}
	return fmt.Errorf("youtube upload: %w", err)
}

func mockResult(privacy string) pipeline.PublishResult {
	id := fmt.Sprintf("mock-%x", time.Now().UnixNano())
	return pipeline.PublishResult{
		VideoID:    id,
		URL:        "https://www.youtube.com/watch?v=" + id,
		Visibility: privacy,
	}
}
