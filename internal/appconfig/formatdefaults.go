package appconfig

import (
	"fmt"
	"os"

	"github.com/chartflow/import-server/internal/models"
	"gopkg.in/yaml.v3"
)

// FormatDefaults maps an org id onto the delimited-format options its feeds
// use, so intake callers can omit them. Loaded once at startup from yaml.
type FormatDefaults struct {
	orgs map[string]models.FormatOptions
}

type formatDefaultsFile struct {
	Orgs map[string]struct {
		Delimiter        string   `yaml:"delimiter"`
		HasHeader        bool     `yaml:"has_header"`
		ColumnNames      []string `yaml:"column_names"`
		LinesToSkip      int      `yaml:"lines_to_skip"`
		SkipEmptyLines   bool     `yaml:"skip_empty_lines"`
		RelaxColumnCount bool     `yaml:"relax_column_count"`
		SkipShortRows    bool     `yaml:"skip_short_rows"`
	} `yaml:"orgs"`
}

func LoadFormatDefaults(path string) (*FormatDefaults, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read format defaults file %s: %w", path, err)
	}
	var file formatDefaultsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse format defaults file %s: %w", path, err)
	}
	fd := &FormatDefaults{orgs: map[string]models.FormatOptions{}}
	for org, o := range file.Orgs {
		fd.orgs[org] = models.FormatOptions{
			Delimiter:        o.Delimiter,
			HasHeader:        o.HasHeader,
			ColumnNames:      o.ColumnNames,
			LinesToSkip:      o.LinesToSkip,
			SkipEmptyLines:   o.SkipEmptyLines,
			RelaxColumnCount: o.RelaxColumnCount,
			SkipShortRows:    o.SkipShortRows,
		}
	}
	return fd, nil
}

// For returns the configured options for an org, if any.
func (fd *FormatDefaults) For(orgID string) (models.FormatOptions, bool) {
	if fd == nil {
		return models.FormatOptions{}, false
	}
	o, ok := fd.orgs[orgID]
	return o, ok
}
