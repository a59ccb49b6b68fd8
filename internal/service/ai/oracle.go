package ai

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/constants"
	"github.com/creatrr/competitor-tracker-go/internal/prompt"
	"github.com/creatrr/competitor-tracker-go/internal/util"
)

// TextGenerator is what the oracle needs from a model backend.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, jsonMode bool) (string, error)
}

// TopicOracle wraps the model backend with the parsing, validation and
// fallback logic the trend pipeline depends on. Model output is never
// trusted as-is.
type TopicOracle struct {
	generator TextGenerator
	logger    *zap.Logger
}

func NewTopicOracle(generator TextGenerator, logger *zap.Logger) *TopicOracle {
	return &TopicOracle{generator: generator, logger: logger}
}

// Cluster is one named group of topics proposed by the model.
type Cluster struct {
	Name   string   `json:"name"`
	Topics []string `json:"topics"`
}

// ClusterResult carries the clusters plus a Degraded flag set when the model
// output was unusable and the singleton fallback was applied.
type ClusterResult struct {
	Clusters []Cluster
	Degraded bool
}

// ExtractTopics asks the model for up to three specific topics describing
// the given video content. An empty slice is a valid outcome.
func (o *TopicOracle) ExtractTopics(ctx context.Context, content string) ([]string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}
	if len(content) > constants.ExtractionConfig.MaxContentChars {
		content = content[:constants.ExtractionConfig.MaxContentChars]
	}

	text, err := o.generator.GenerateText(ctx, prompt.Extraction(content), false)
	if err != nil {
		return nil, err
	}

	topics := parseTopicLines(text)
	if len(topics) > constants.ExtractionConfig.MaxTopics {
		topics = topics[:constants.ExtractionConfig.MaxTopics]
	}

	o.logger.Debug("extracted topics",
		zap.Strings("topics", topics),
		zap.Int("contentLength", len(content)))
	return topics, nil
}

// parseTopicLines cleans raw model output into topic strings. Lines starting
// with a digit are treated as numbering artifacts and dropped, matching how
// models tend to decorate list output.
func parseTopicLines(raw string) []string {
	var topics []string
	for _, line := range strings.Split(raw, "\n") {
		topic := strings.ToLower(strings.TrimSpace(line))
		if topic == "" {
			continue
		}
		if unicode.IsDigit(rune(topic[0])) {
			continue
		}
		topic = strings.TrimLeft(topic, "-*•")
		topic = strings.TrimSpace(topic)
		if topic != "" {
			topics = append(topics, topic)
		}
	}
	return topics
}

// ClusterTopics groups topics into named clusters, batching when the input
// exceeds the per-call limit. Every input topic appears in exactly one
// cluster of the result: the model's coverage gaps are repaired with
// singleton clusters, and a fully unusable response degrades to one
// singleton cluster per topic.
func (o *TopicOracle) ClusterTopics(ctx context.Context, topics []string, promptContext string) (*ClusterResult, error) {
	unique := util.UniqueStrings(topics)
	if len(unique) == 0 {
		return &ClusterResult{}, nil
	}
	if len(unique) == 1 {
		return &ClusterResult{
			Clusters: []Cluster{{Name: unique[0], Topics: unique}},
		}, nil
	}

	if len(unique) > constants.TrendConfig.ClusterBatchSize {
		return o.clusterInBatches(ctx, unique, promptContext)
	}

	clusters, degraded := o.clusterBatch(ctx, unique, promptContext)
	return &ClusterResult{Clusters: clusters, Degraded: degraded}, nil
}

func (o *TopicOracle) clusterBatch(ctx context.Context, unique []string, promptContext string) ([]Cluster, bool) {
	promptText := prompt.Clustering(unique, promptContext)

	var parsed struct {
		Clusters []Cluster `json:"clusters"`
	}
	parsedOK := false

	for attempt := 0; attempt <= constants.OracleConfig.ParseRetries; attempt++ {
		text, err := o.generator.GenerateText(ctx, promptText, true)
		if err != nil {
			o.logger.Warn("clustering call failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		cleaned := cleanJSONResponse(text)
		if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
			preview := cleaned
			if len(preview) > 200 {
				preview = preview[:200]
			}
			o.logger.Warn("clustering response is not valid JSON",
				zap.Int("attempt", attempt+1),
				zap.String("preview", preview),
				zap.Error(err))
			continue
		}
		if parsed.Clusters == nil {
			o.logger.Warn("clustering response missing clusters key",
				zap.Int("attempt", attempt+1))
			continue
		}
		parsedOK = true
		break
	}

	if !parsedOK {
		o.logger.Warn("clustering degraded to singleton fallback",
			zap.Int("topicCount", len(unique)))
		clusters := make([]Cluster, 0, len(unique))
		for _, t := range unique {
			clusters = append(clusters, Cluster{Name: t, Topics: []string{t}})
		}
		return clusters, true
	}

	clusters := make([]Cluster, 0, len(parsed.Clusters))
	covered := make(map[string]bool)
	for _, c := range parsed.Clusters {
		if c.Name == "" || len(c.Topics) == 0 {
			continue
		}
		clusters = append(clusters, c)
		for _, t := range c.Topics {
			covered[t] = true
		}
	}

	// Coverage repair: topics the model dropped become their own clusters.
	for _, t := range unique {
		if !covered[t] {
			clusters = append(clusters, Cluster{Name: t, Topics: []string{t}})
		}
	}

	o.logger.Debug("clustered topics",
		zap.Int("topics", len(unique)),
		zap.Int("clusters", len(clusters)))
	return clusters, false
}

func (o *TopicOracle) clusterInBatches(ctx context.Context, unique []string, promptContext string) (*ClusterResult, error) {
	batchSize := constants.TrendConfig.ClusterBatchSize
	o.logger.Info("clustering in batches",
		zap.Int("topics", len(unique)),
		zap.Int("batchSize", batchSize))

	var all []Cluster
	degraded := false
	for start := 0; start < len(unique); start += batchSize {
		end := util.Min(start+batchSize, len(unique))
		clusters, batchDegraded := o.clusterBatch(ctx, unique[start:end], promptContext)
		all = append(all, clusters...)
		degraded = degraded || batchDegraded
	}

	// Merge same-named clusters across batches, case-insensitively.
	merged := make(map[string]*Cluster)
	var order []string
	for _, c := range all {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if key == "" {
			continue
		}
		if existing, ok := merged[key]; ok {
			existing.Topics = util.UniqueStrings(append(existing.Topics, c.Topics...))
		} else {
			merged[key] = &Cluster{Name: key, Topics: util.UniqueStrings(c.Topics)}
			order = append(order, key)
		}
	}

	result := &ClusterResult{Degraded: degraded}
	for _, key := range order {
		result.Clusters = append(result.Clusters, *merged[key])
	}
	return result, nil
}

// cleanJSONResponse strips markdown fences and any prose around the JSON
// object.
func cleanJSONResponse(raw string) string {
	cleaned := strings.TrimSpace(raw)

	if strings.Contains(cleaned, "```") {
		cleaned = strings.ReplaceAll(cleaned, "```json", "")
		cleaned = strings.ReplaceAll(cleaned, "```", "")
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}
	return strings.TrimSpace(cleaned)
}
