// # internal/ui/report/formats/sarif.go
package formats

import (
	"encoding/json"
	"microscope/internal/engine/diagnostic"
	"microscope/internal/shared/version"
	"path/filepath"
)

// SARIF v2.1.0 schema – see https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"
)

type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool              sarifTool          `json:"tool"`
	AutomationDetails *sarifAutomationID `json:"automationDetails,omitempty"`
	Results           []sarifResult      `json:"results"`
}

type sarifAutomationID struct {
	GUID string `json:"guid"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
	Fixes     []sarifFix      `json:"fixes,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}

type sarifFix struct {
	Description     sarifMessage          `json:"description"`
	ArtifactChanges []sarifArtifactChange `json:"artifactChanges"`
}

type sarifArtifactChange struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Replacements     []sarifReplacement    `json:"replacements"`
}

type sarifReplacement struct {
	DeletedRegion   sarifRegion         `json:"deletedRegion"`
	InsertedContent *sarifInsertContent `json:"insertedContent,omitempty"`
}

type sarifInsertContent struct {
	Text string `json:"text"`
}

var ruleDescriptions = map[diagnostic.Kind]string{
	diagnostic.UnresolvedImport:         "An imported class or function does not exist.",
	diagnostic.UnresolvedClass:          "A referenced class, interface, trait or function does not exist.",
	diagnostic.UnresolvedCallableClass:  "The class half of a Class@method string does not exist.",
	diagnostic.UnresolvedCallableMethod: "The method half of a Class@method string does not exist on its class.",
	diagnostic.NamespaceMismatch:        "The declared namespace or type name does not match the file location.",
}

// GenerateSARIF builds a SARIF v2.1.0 document from diagnostics. File URIs
// are made relative to projectRoot so that reports are safe to share.
func GenerateSARIF(projectRoot string, summary Summary, diags []diagnostic.Diagnostic) ([]byte, error) {
	results := make([]sarifResult, 0, len(diags))
	seen := make(map[diagnostic.Kind]bool)

	for _, d := range diags {
		seen[d.Kind] = true
		uri := relativeURI(projectRoot, d.FilePath)
		loc := sarifLocation{
			PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: uri, URIBaseID: "%SRCROOT%"},
			},
		}
		if d.Line > 0 {
			loc.PhysicalLocation.Region = &sarifRegion{StartLine: d.Line}
		}
		result := sarifResult{
			RuleID:    d.Kind.Rule(),
			Level:     severityToLevel(d.Severity),
			Message:   sarifMessage{Text: d.Detail},
			Locations: []sarifLocation{loc},
		}
		if d.Fix != nil {
			result.Fixes = []sarifFix{fixToSARIF(uri, *d.Fix)}
		}
		results = append(results, result)
	}

	run := sarifRun{
		Tool: sarifTool{
			Driver: sarifDriver{
				Name:    version.Name,
				Version: version.Version,
				Rules:   buildSARIFRules(seen),
			},
		},
		Results: results,
	}
	if summary.RunID != "" {
		run.AutomationDetails = &sarifAutomationID{GUID: summary.RunID}
	}

	report := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs:    []sarifRun{run},
	}
	return json.MarshalIndent(report, "", "  ")
}

// buildSARIFRules returns only the rules that are relevant for the given findings.
func buildSARIFRules(seen map[diagnostic.Kind]bool) []sarifRule {
	rules := make([]sarifRule, 0, len(seen))
	for _, kind := range diagnostic.Kinds {
		if !seen[kind] {
			continue
		}
		level := "error"
		if kind == diagnostic.NamespaceMismatch {
			level = "warning"
		}
		rules = append(rules, sarifRule{
			ID:               kind.Rule(),
			Name:             string(kind),
			ShortDescription: sarifMessage{Text: ruleDescriptions[kind]},
			DefaultConfig:    sarifRuleDefaultConfig{Level: level},
		})
	}
	return rules
}

func fixToSARIF(uri string, fix diagnostic.Fix) sarifFix {
	replacement := sarifReplacement{
		DeletedRegion:   sarifRegion{StartLine: fix.Line},
		InsertedContent: &sarifInsertContent{Text: fix.NewText},
	}
	desc := "Replace the namespace statement"
	if fix.Insert {
		// an empty region after the line
		replacement.DeletedRegion = sarifRegion{StartLine: fix.Line + 1, StartColumn: 1}
		replacement.InsertedContent.Text = fix.NewText + "\n"
		desc = "Insert a namespace statement"
	}
	return sarifFix{
		Description: sarifMessage{Text: desc},
		ArtifactChanges: []sarifArtifactChange{{
			ArtifactLocation: sarifArtifactLocation{URI: uri, URIBaseID: "%SRCROOT%"},
			Replacements:     []sarifReplacement{replacement},
		}},
	}
}

// relativeURI converts an absolute file path to a forward-slash relative URI
// anchored at projectRoot. If the path is already relative or projectRoot is
// empty, the original path (with forward slashes) is returned.
func relativeURI(projectRoot, filePath string) string {
	if projectRoot != "" && filepath.IsAbs(filePath) {
		rel, err := filepath.Rel(projectRoot, filePath)
		if err == nil {
			filePath = rel
		}
	}
	return filepath.ToSlash(filePath)
}

func severityToLevel(s diagnostic.Severity) string {
	switch s {
	case diagnostic.SeverityError:
		return "error"
	case diagnostic.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}
