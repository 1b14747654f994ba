// Package topics loads the list of interview topics offered on the selection screen.
package topics

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"

	"interviewmic/internal/domain"
)

//go:embed default_topics.yaml
var defaultTopics []byte

type catalogFile struct {
	Topics []topicEntry `yaml:"topics" validate:"required,min=1,dive"`
}

type topicEntry struct {
	ID            string `yaml:"id" validate:"required"`
	Name          string `yaml:"name" validate:"required"`
	Description   string `yaml:"description"`
	Difficulty    string `yaml:"difficulty" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	EstimatedTime string `yaml:"estimated_time"`
	Icon          string `yaml:"icon"`
}

// Catalog is an ordered, immutable topic list.
type Catalog struct {
	topics []domain.Topic
	byID   map[string]int
}

// Load reads the catalogue from path, or the built-in list when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultTopics)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topics file %q: %w", path, err)
	}
	catalog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("topics file %q: %w", path, err)
	}
	return catalog, nil
}

// Default returns the built-in catalogue.
func Default() *Catalog {
	catalog, err := Parse(defaultTopics)
	if err != nil {
		panic(fmt.Sprintf("built-in topics are invalid: %v", err))
	}
	return catalog
}

func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("validate topics: %w", err)
	}

	catalog := &Catalog{byID: make(map[string]int, len(file.Topics))}
	for i, entry := range file.Topics {
		id := strings.TrimSpace(entry.ID)
		if _, dup := catalog.byID[id]; dup {
			return nil, fmt.Errorf("topic %d: duplicate id %q", i+1, id)
		}
		var topic domain.Topic
		if err := copier.Copy(&topic, &entry); err != nil {
			return nil, fmt.Errorf("topic %d: %w", i+1, err)
		}
		topic.ID = id
		catalog.byID[id] = len(catalog.topics)
		catalog.topics = append(catalog.topics, topic)
	}
	return catalog, nil
}

// List returns a copy of every topic in display order.
func (c *Catalog) List() []domain.Topic {
	return append([]domain.Topic(nil), c.topics...)
}

func (c *Catalog) Lookup(id string) (domain.Topic, bool) {
	idx, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return domain.Topic{}, false
	}
	return c.topics[idx], true
}
