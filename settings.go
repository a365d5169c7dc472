package localimg

import (
	"slices"
	"strings"

	"github.com/eringen/localimg/importer"
)

const (
	settingImporterEnabled   = "importer_enabled"
	settingImporterPostTypes = "importer_post_types"
	settingImporterAllowlist = "importer_domain_allowlist"
)

// ImporterSettings controls when external images are imported.
type ImporterSettings struct {
	Enabled         bool
	PostTypes       []string
	DomainAllowlist string // comma-separated hosts; empty allows every host
}

// DefaultImporterSettings is what an installation starts with.
func DefaultImporterSettings() ImporterSettings {
	return ImporterSettings{
		Enabled:   true,
		PostTypes: []string{TypePost, TypePage},
	}
}

// AllowsType reports whether posts of type t are processed.
func (s ImporterSettings) AllowsType(t string) bool {
	return slices.Contains(s.PostTypes, t)
}

// Allowlist returns the parsed domain allowlist.
func (s ImporterSettings) Allowlist() []string {
	return importer.ParseAllowlist(s.DomainAllowlist)
}

// ImporterSettings loads the importer settings, falling back to defaults for
// keys that were never saved.
func (s *Store) ImporterSettings() (ImporterSettings, error) {
	settings := DefaultImporterSettings()

	enabled, ok, err := s.GetSetting(settingImporterEnabled)
	if err != nil {
		return settings, err
	}
	if ok {
		settings.Enabled = enabled == "1"
	}

	types, ok, err := s.GetSetting(settingImporterPostTypes)
	if err != nil {
		return settings, err
	}
	if ok {
		settings.PostTypes = ParseTags(types)
	}

	allowlist, _, err := s.GetSetting(settingImporterAllowlist)
	if err != nil {
		return settings, err
	}
	settings.DomainAllowlist = allowlist
	return settings, nil
}

// SaveImporterSettings persists all three importer settings.
func (s *Store) SaveImporterSettings(settings ImporterSettings) error {
	enabled := "0"
	if settings.Enabled {
		enabled = "1"
	}
	if err := s.SetSetting(settingImporterEnabled, enabled); err != nil {
		return err
	}
	types := "," + strings.Join(FilterEmpty(settings.PostTypes), ",") + ","
	if err := s.SetSetting(settingImporterPostTypes, types); err != nil {
		return err
	}
	return s.SetSetting(settingImporterAllowlist, strings.TrimSpace(settings.DomainAllowlist))
}
