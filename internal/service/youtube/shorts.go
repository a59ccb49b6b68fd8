package youtube

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/constants"
	"github.com/creatrr/competitor-tracker-go/internal/service/cache"
)

// ShortsDetector classifies videos as Shorts. The probe relies on the fact
// that youtube.com/shorts/{id} answers 200 for an actual Short and redirects
// to /watch for regular videos.
type ShortsDetector struct {
	client *http.Client
	cache  *cache.CacheService
	logger *zap.Logger
}

func NewShortsDetector(cacheSvc *cache.CacheService, logger *zap.Logger) *ShortsDetector {
	return &ShortsDetector{
		client: &http.Client{
			Timeout: constants.ShortsConfig.ProbeTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cache:  cacheSvc,
		logger: logger,
	}
}

// IsShort probes the shorts URL, falling back to duration when the probe
// fails. durationSeconds of 0 means the duration is unknown.
func (sd *ShortsDetector) IsShort(ctx context.Context, videoID string, durationSeconds int) bool {
	if sd.cache != nil {
		if isShort, found := sd.cache.GetShortsFlag(ctx, videoID); found {
			return isShort
		}
	}

	isShort, err := sd.probe(ctx, videoID)
	if err != nil {
		sd.logger.Debug("shorts probe failed, using duration fallback",
			zap.String("videoId", videoID),
			zap.Error(err))
		isShort = durationSeconds > 0 && durationSeconds <= constants.ShortsConfig.MaxShortSeconds
	}

	if sd.cache != nil {
		sd.cache.SetShortsFlag(ctx, videoID, isShort)
	}
	return isShort
}

func (sd *ShortsDetector) probe(ctx context.Context, videoID string) (bool, error) {
	url := fmt.Sprintf("https://www.youtube.com/shorts/%s", videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := sd.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected status %d from shorts probe", resp.StatusCode)
	}
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
