package config

import "reflect"

// ConfigDiff describes what changed between two configs.
//
// Conversation and translation settings apply to connections opened after
// the reload; running sessions keep the settings they started with. Server
// address, TLS and provider changes need a restart and are only reported.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ConversationFields names the conversation keys whose value changed,
	// in declaration order (e.g. "persona", "speed_factor").
	ConversationFields []string

	TranslationChanged bool

	// RestartRequired lists sections that changed but cannot be applied live.
	RestartRequired []string
}

// ConversationChanged reports whether any conversation default changed.
func (d ConfigDiff) ConversationChanged() bool { return len(d.ConversationFields) > 0 }

// Empty reports whether nothing changed at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.ConversationChanged() && !d.TranslationChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.ListenAddr != new.Server.ListenAddr || !reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}

	d.ConversationFields = diffConversation(old.Conversation, new.Conversation)
	d.TranslationChanged = old.Translation != new.Translation
	return d
}

// diffConversation lists the yaml keys of the fields that differ.
func diffConversation(old, new ConversationConfig) []string {
	var fields []string
	ov, nv := reflect.ValueOf(old), reflect.ValueOf(new)
	t := ov.Type()
	for i := range t.NumField() {
		if ov.Field(i).Interface() != nv.Field(i).Interface() {
			fields = append(fields, t.Field(i).Tag.Get("yaml"))
		}
	}
	return fields
}
