package transcript

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/constants"
	"github.com/creatrr/competitor-tracker-go/internal/service/cache"
)

// Service fetches video transcripts by scraping the watch page for the
// player's caption track list and downloading the timedtext XML. Videos
// without captions are a normal outcome, not an error.
type Service struct {
	client *http.Client
	cache  *cache.CacheService
	logger *zap.Logger
}

func NewService(cacheSvc *cache.CacheService, logger *zap.Logger) *Service {
	return &Service{
		client: &http.Client{Timeout: constants.SnapshotConfig.FetchTimeout},
		cache:  cacheSvc,
		logger: logger,
	}
}

// Fetch returns the transcript text capped to the extraction limit, or
// ("", nil) when the video has no captions. The no-captions outcome is
// cached too so repeated pipeline runs skip the scrape.
func (s *Service) Fetch(ctx context.Context, videoID string) (string, error) {
	if s.cache != nil {
		if text, found := s.cache.GetTranscript(ctx, videoID); found {
			return text, nil
		}
	}

	trackURL, err := s.findCaptionTrack(ctx, videoID)
	if err != nil {
		return "", err
	}
	if trackURL == "" {
		if s.cache != nil {
			s.cache.SetTranscript(ctx, videoID, "")
		}
		return "", nil
	}

	text, err := s.fetchTrack(ctx, trackURL)
	if err != nil {
		return "", err
	}

	if len(text) > constants.ExtractionConfig.MaxTranscriptChars {
		text = text[:constants.ExtractionConfig.MaxTranscriptChars]
	}

	if s.cache != nil {
		s.cache.SetTranscript(ctx, videoID, text)
	}
	return text, nil
}

// findCaptionTrack scrapes the watch page and pulls the first caption track
// URL out of the embedded player response. English tracks win when present.
func (s *Service) findCaptionTrack(ctx context.Context, videoID string) (string, error) {
	url := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("watch page fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("watch page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse watch page: %w", err)
	}

	var playerJSON string
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if idx := strings.Index(text, "ytInitialPlayerResponse = "); idx >= 0 {
			playerJSON = extractJSONObject(text[idx+len("ytInitialPlayerResponse = "):])
			return false
		}
		return true
	})
	if playerJSON == "" {
		return "", nil
	}

	var player struct {
		Captions struct {
			PlayerCaptionsTracklistRenderer struct {
				CaptionTracks []struct {
					BaseURL      string `json:"baseUrl"`
					LanguageCode string `json:"languageCode"`
				} `json:"captionTracks"`
			} `json:"playerCaptionsTracklistRenderer"`
		} `json:"captions"`
	}
	if err := json.Unmarshal([]byte(playerJSON), &player); err != nil {
		s.logger.Debug("failed to decode player response",
			zap.String("videoId", videoID),
			zap.Error(err))
		return "", nil
	}

	tracks := player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return "", nil
	}
	for _, t := range tracks {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t.BaseURL, nil
		}
	}
	return tracks[0].BaseURL, nil
}

func (s *Service) fetchTrack(ctx context.Context, trackURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("caption track fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("caption track returned status %d", resp.StatusCode)
	}

	var track struct {
		Texts []struct {
			Content string `xml:",chardata"`
		} `xml:"text"`
	}
	if err := xml.NewDecoder(resp.Body).Decode(&track); err != nil {
		return "", fmt.Errorf("failed to decode caption XML: %w", err)
	}

	parts := make([]string, 0, len(track.Texts))
	for _, t := range track.Texts {
		cleaned := strings.TrimSpace(html.UnescapeString(t.Content))
		if cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, " "), nil
}

// extractJSONObject returns the balanced {...} prefix of raw, tracking string
// literals so braces inside caption names do not break the scan.
func extractJSONObject(raw string) string {
	if raw == "" || raw[0] != '{' {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return raw[:i+1]
				}
			}
		}
	}
	return ""
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
