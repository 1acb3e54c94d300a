package config

// Channel describes one Telegram channel to ingest. Channels are defined as
// one YAML file per channel inside the channels directory; the file name has
// no semantic meaning beyond load ordering.
type Channel struct {
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
	Language string `yaml:"language"`
	IsActive bool   `yaml:"-"`
	MaxPosts int    `yaml:"max_posts"`
}

// rawChannel mirrors Channel for unmarshalling. is_active defaults to true
// when omitted, which a plain bool field cannot express.
type rawChannel struct {
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
	Language string `yaml:"language"`
	IsActive *bool  `yaml:"is_active"`
	MaxPosts int    `yaml:"max_posts"`
}
