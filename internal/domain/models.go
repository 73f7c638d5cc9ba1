package domain

import "strings"

// SelectorSet names the CSS selectors the web probe interacts with.
// Which ones are used depends on the flow (login form or OK button).
type SelectorSet struct {
	UserInput        string `yaml:"user_input" json:"user_input,omitempty"`
	PassInput        string `yaml:"pass_input" json:"pass_input,omitempty"`
	SubmitButton     string `yaml:"submit_button" json:"submit_button,omitempty"`
	OKButton         string `yaml:"ok_button" json:"ok_button,omitempty"`
	SuccessIndicator string `yaml:"success_indicator" json:"success_indicator"`
	LogoutButton     string `yaml:"logout_button" json:"logout_button"`
}

type WebConfig struct {
	URL       string      `yaml:"url" json:"url"`
	User      string      `yaml:"user" json:"user,omitempty"`
	Selectors SelectorSet `yaml:"selectors" json:"selectors"`
}

type DBConfig struct {
	Kind        string `yaml:"db_type" json:"db_type"`
	Host        string `yaml:"host" json:"host"`
	Port        int    `yaml:"port" json:"port"`
	ServiceName string `yaml:"db_name" json:"db_name"`
	User        string `yaml:"user" json:"user"`
}

// SystemSpec is one monitored system as declared in the configuration.
type SystemSpec struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Enabled     bool      `yaml:"enabled" json:"enabled"`
	Web         WebConfig `yaml:"web" json:"web"`
	Database    DBConfig  `yaml:"database" json:"database"`
}

// WebPasswordKey is the secrets key holding the web UI password.
func (s SystemSpec) WebPasswordKey() string {
	return strings.ToUpper(s.Name) + "_WEB_PASSWORD"
}

// DBPasswordKey is the secrets key holding the database password.
func (s SystemSpec) DBPasswordKey() string {
	return strings.ToUpper(s.Name) + "_DB_PASSWORD"
}

// SMTPPasswordKey is the secrets key holding the mail relay password.
const SMTPPasswordKey = "SMTP_PASSWORD"
