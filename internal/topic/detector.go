// Package topic detects conversation topics by counting whole-word keyword
// matches in the user's recent messages. The keyword catalog is versioned
// configuration embedded in the binary, not code.
package topic

import (
	_ "embed"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lumonmind/lumond/internal/session"
)

//go:embed keywords.yaml
var defaultKeywords []byte

// Defaults per the detection contract: scan the last 5 user messages and
// require at least 3 keyword hits before a topic counts as detected.
const (
	DefaultRecentMessages   = 5
	DefaultKeywordThreshold = 3
)

type profile struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type catalog struct {
	Topics []profile `yaml:"topics"`
}

// Detector scans message histories for topic keyword matches.
type Detector struct {
	profiles []profile
	patterns map[string][]*regexp.Regexp

	recentMessages   int
	keywordThreshold int
	logger           *slog.Logger
}

// NewDetector builds a Detector from the embedded keyword catalog.
func NewDetector(logger *slog.Logger, recentMessages, keywordThreshold int) (*Detector, error) {
	return NewDetectorFromYAML(logger, defaultKeywords, recentMessages, keywordThreshold)
}

// NewDetectorFromYAML builds a Detector from a custom keyword catalog.
// Useful for tests and for deployments that ship their own keyword lists.
func NewDetectorFromYAML(logger *slog.Logger, data []byte, recentMessages, keywordThreshold int) (*Detector, error) {
	var cat catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse keyword catalog: %w", err)
	}
	if len(cat.Topics) == 0 {
		return nil, fmt.Errorf("keyword catalog contains no topics")
	}

	if recentMessages <= 0 {
		recentMessages = DefaultRecentMessages
	}
	if keywordThreshold <= 0 {
		keywordThreshold = DefaultKeywordThreshold
	}

	d := &Detector{
		profiles:         cat.Topics,
		patterns:         make(map[string][]*regexp.Regexp, len(cat.Topics)),
		recentMessages:   recentMessages,
		keywordThreshold: keywordThreshold,
		logger:           logger.With("component", "topic_detector"),
	}

	for _, p := range cat.Topics {
		if p.Name == "" {
			return nil, fmt.Errorf("keyword catalog contains a topic with no name")
		}
		patterns := make([]*regexp.Regexp, 0, len(p.Keywords))
		for _, kw := range p.Keywords {
			// Whole-word matching: "car" must not count inside "scared".
			// Multi-word keywords get boundaries on the outer words.
			re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
			if err != nil {
				return nil, fmt.Errorf("bad keyword %q for topic %s: %w", kw, p.Name, err)
			}
			patterns = append(patterns, re)
		}
		d.patterns[p.Name] = patterns
	}

	return d, nil
}

// Names returns all topic identifiers in declaration order.
func (d *Detector) Names() []string {
	names := make([]string, len(d.profiles))
	for i, p := range d.profiles {
		names[i] = p.Name
	}
	return names
}

// Detect returns the topics whose keyword match count in the most recent
// user messages meets the threshold, ordered by descending match count.
// Ties keep catalog declaration order. System and assistant messages are
// never scanned.
func (d *Detector) Detect(history []session.Message) []string {
	var userTexts []string
	for _, msg := range history {
		if msg.Role == session.RoleUser {
			userTexts = append(userTexts, msg.Content)
		}
	}
	if len(userTexts) > d.recentMessages {
		userTexts = userTexts[len(userTexts)-d.recentMessages:]
	}
	combined := strings.ToLower(strings.Join(userTexts, " "))
	if combined == "" {
		return nil
	}

	counts := make(map[string]int, len(d.profiles))
	for _, p := range d.profiles {
		n := 0
		for _, re := range d.patterns[p.Name] {
			// Every occurrence counts, including repeats within one message.
			n += len(re.FindAllStringIndex(combined, -1))
		}
		counts[p.Name] = n
	}

	var detected []string
	for _, p := range d.profiles {
		if counts[p.Name] >= d.keywordThreshold {
			detected = append(detected, p.Name)
		}
	}
	sort.SliceStable(detected, func(i, j int) bool {
		return counts[detected[i]] > counts[detected[j]]
	})

	if len(detected) > 0 {
		d.logger.Debug("topics detected", "topics", detected, "scanned_messages", len(userTexts))
	}
	return detected
}
