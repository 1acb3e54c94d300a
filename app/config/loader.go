package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Loader handles loading and validation of channel definitions
type Loader struct {
	channelsDir     string
	defaultMaxPosts int
}

// NewLoader creates a new channel definition loader. defaultMaxPosts applies
// to channels whose definition omits max_posts.
func NewLoader(channelsDir string, defaultMaxPosts int) *Loader {
	if defaultMaxPosts <= 0 {
		defaultMaxPosts = 10
	}
	return &Loader{channelsDir: channelsDir, defaultMaxPosts: defaultMaxPosts}
}

// LoadAll loads all YAML channel files from the channels directory, sorted by
// file name so batch ordering is stable across runs.
func (l *Loader) LoadAll() ([]Channel, error) {
	if _, err := os.Stat(l.channelsDir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(l.channelsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(l.channelsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)
	sort.Strings(files)

	var channels []Channel
	seen := make(map[string]string)

	for _, file := range files {
		channel, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := l.validate(channel); err != nil {
			return nil, fmt.Errorf("invalid channel definition %s: %w", file, err)
		}

		if prev, ok := seen[channel.Username]; ok {
			return nil, fmt.Errorf("duplicate channel username %q in %s (already defined in %s)", channel.Username, file, prev)
		}
		seen[channel.Username] = file

		channels = append(channels, *channel)
		slog.Debug("Loaded channel definition", "file", file, "channel", channel.Name)
	}

	return channels, nil
}

// loadFile loads a single YAML channel file
func (l *Loader) loadFile(path string) (*Channel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var raw rawChannel
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	channel := &Channel{
		Name:     raw.Name,
		Username: raw.Username,
		URL:      raw.URL,
		Category: raw.Category,
		Language: raw.Language,
		IsActive: true,
		MaxPosts: raw.MaxPosts,
	}
	if raw.IsActive != nil {
		channel.IsActive = *raw.IsActive
	}

	l.setDefaults(channel)

	return channel, nil
}

// setDefaults applies default values to a channel definition
func (l *Loader) setDefaults(channel *Channel) {
	if channel.MaxPosts == 0 {
		channel.MaxPosts = l.defaultMaxPosts
	}
	if channel.URL == "" && channel.Username != "" {
		channel.URL = "https://t.me/" + channel.Username
	}
}

// validate validates a channel definition
func (l *Loader) validate(channel *Channel) error {
	if channel.Name == "" {
		return fmt.Errorf("channel name is required")
	}
	if channel.Username == "" {
		return fmt.Errorf("channel username is required")
	}
	if channel.Category == "" {
		return fmt.Errorf("channel category is required")
	}
	if channel.Language == "" {
		return fmt.Errorf("channel language is required")
	}
	if _, err := language.Parse(channel.Language); err != nil {
		return fmt.Errorf("invalid language tag %q: %w", channel.Language, err)
	}
	if channel.MaxPosts < 0 {
		return fmt.Errorf("max_posts must be non-negative")
	}
	return nil
}
