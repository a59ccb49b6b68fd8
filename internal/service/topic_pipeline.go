package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/constants"
	"github.com/creatrr/competitor-tracker-go/internal/domain"
)

type transcriptFetcher interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

type topicExtractor interface {
	ExtractTopics(ctx context.Context, content string) ([]string, error)
}

type pipelineTopicStore interface {
	AddVideoTopics(ctx context.Context, videoID string, topics []string) error
	VideoHasTopics(ctx context.Context, videoID string) (bool, error)
}

type pipelineSnapshotStore interface {
	GetByWindow(ctx context.Context, videoID string, window domain.WindowType) (*domain.Snapshot, error)
}

type performanceRater interface {
	PerformanceRatio(ctx context.Context, channelID string, isShort bool, window domain.WindowType, views int64) (float64, bool, error)
}

// TopicPipeline assigns topic tags to videos that outperform their channel's
// baseline at the reference window. A channel without a baseline yet
// auto-qualifies, so new channels bootstrap topic history immediately.
type TopicPipeline struct {
	transcripts transcriptFetcher
	oracle      topicExtractor
	topics      pipelineTopicStore
	snapshots   pipelineSnapshotStore
	baselines   performanceRater
	logger      *zap.Logger
}

func NewTopicPipeline(transcripts transcriptFetcher, oracle topicExtractor, topics pipelineTopicStore,
	snapshots pipelineSnapshotStore, baselines performanceRater, logger *zap.Logger) *TopicPipeline {
	return &TopicPipeline{
		transcripts: transcripts,
		oracle:      oracle,
		topics:      topics,
		snapshots:   snapshots,
		baselines:   baselines,
		logger:      logger,
	}
}

// QualifiesForExtraction applies the performance gate: the video must have a
// reference-window snapshot, and either no baseline exists or the ratio
// meets the threshold.
func (p *TopicPipeline) QualifiesForExtraction(ctx context.Context, video *domain.Video) (bool, error) {
	window := domain.WindowType(constants.TrendConfig.ReferenceWindow)

	snap, err := p.snapshots.GetByWindow(ctx, video.VideoID, window)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}

	ratio, ok, err := p.baselines.PerformanceRatio(ctx, video.ChannelID, video.IsShort, window, snap.Views)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return ratio >= constants.TrendConfig.MinPerformance, nil
}

// ExtractTopicsForVideo runs extraction for one video: assemble content
// (transcript preferred, title+description fallback), call the oracle,
// persist the tags. Already-tagged videos are skipped without an oracle
// call. Zero extracted topics is a valid outcome.
func (p *TopicPipeline) ExtractTopicsForVideo(ctx context.Context, video *domain.Video) ([]string, error) {
	tagged, err := p.topics.VideoHasTopics(ctx, video.VideoID)
	if err != nil {
		return nil, err
	}
	if tagged {
		return nil, nil
	}

	content := p.assembleContent(ctx, video)

	topics, err := p.oracle.ExtractTopics(ctx, content)
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		p.logger.Debug("no topics extracted",
			zap.String("videoId", video.VideoID))
		return nil, nil
	}

	if err := p.topics.AddVideoTopics(ctx, video.VideoID, topics); err != nil {
		return nil, err
	}

	p.logger.Debug("topics extracted",
		zap.String("videoId", video.VideoID),
		zap.Strings("topics", topics))
	return topics, nil
}

func (p *TopicPipeline) assembleContent(ctx context.Context, video *domain.Video) string {
	transcript, err := p.transcripts.Fetch(ctx, video.VideoID)
	if err != nil {
		p.logger.Debug("transcript fetch failed, using description",
			zap.String("videoId", video.VideoID),
			zap.Error(err))
		transcript = ""
	}

	if transcript != "" {
		return fmt.Sprintf("Title: %s\n\nTranscript: %s", video.Title, transcript)
	}

	desc := video.Description
	if len(desc) > constants.ExtractionConfig.MaxDescriptionChars {
		desc = desc[:constants.ExtractionConfig.MaxDescriptionChars]
	}
	return fmt.Sprintf("Title: %s\n\nDescription: %s", video.Title, desc)
}

// PipelineSummary reports one extraction sweep.
type PipelineSummary struct {
	Considered int
	Qualified  int
	Extracted  int
	Skipped    int
	Errors     int
}

// ProcessQualifyingVideos sweeps videos published inside the trend window
// and extracts topics for the ones passing the gate.
func (p *TopicPipeline) ProcessQualifyingVideos(ctx context.Context, videos []*domain.Video) *PipelineSummary {
	summary := &PipelineSummary{Considered: len(videos)}
	for _, v := range videos {
		if ctx.Err() != nil {
			return summary
		}

		qualified, err := p.QualifiesForExtraction(ctx, v)
		if err != nil {
			summary.Errors++
			p.logger.Error("qualification check failed",
				zap.String("videoId", v.VideoID),
				zap.Error(err))
			continue
		}
		if !qualified {
			summary.Skipped++
			continue
		}
		summary.Qualified++

		topics, err := p.ExtractTopicsForVideo(ctx, v)
		if err != nil {
			summary.Errors++
			p.logger.Error("topic extraction failed",
				zap.String("videoId", v.VideoID),
				zap.Error(err))
			continue
		}
		if len(topics) > 0 {
			summary.Extracted++
		}
	}
	return summary
}

// TrendWindowCutoff is the oldest publish time considered by the pipeline
// and trend detection.
func TrendWindowCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -constants.TrendConfig.WindowDays)
}
