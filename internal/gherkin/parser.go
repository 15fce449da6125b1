package gherkin

import (
	"errors"
	"os"
	"strings"

	gherkin "github.com/cucumber/gherkin/go/v26"
	messages "github.com/cucumber/messages/go/v21"

	runixerrors "github.com/joshdevyn/Runix-sub000/pkg/errors"
)

// Feature is the read-only scenario tree the engine consumes. It is produced
// entirely by the external cucumber parser; the engine never reads feature
// files directly.
type Feature struct {
	Name      string
	Path      string
	Scenarios []Scenario
}

// Scenario is one scenario-like child of a feature with its tags and steps
// in document order. Background steps are prepended.
type Scenario struct {
	Name  string
	Tags  []string
	Steps []Step
}

// Step is one line of a scenario: a keyword and its literal text.
type Step struct {
	Keyword string
	Text    string
}

// ParseFeature parses a Gherkin feature file. Any syntax failure is a
// ParseError, which is fatal for the whole run.
func ParseFeature(path string) (*Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, runixerrors.NewParseError(path, 0, err)
	}
	return parse(path, string(data))
}

// ParseFeatureSource parses feature text directly; used by tests.
func ParseFeatureSource(path, source string) (*Feature, error) {
	return parse(path, source)
}

func parse(path, source string) (*Feature, error) {
	ids := &messages.Incrementing{}
	doc, err := gherkin.ParseGherkinDocument(strings.NewReader(source), ids.NewId)
	if err != nil {
		return nil, runixerrors.NewParseError(path, 0, err)
	}
	if doc.Feature == nil {
		return nil, runixerrors.NewParseError(path, 0, errNoFeature)
	}

	feature := &Feature{Name: doc.Feature.Name, Path: path}

	var background []Step
	for _, child := range doc.Feature.Children {
		switch {
		case child.Background != nil:
			background = convertSteps(child.Background.Steps)
		case child.Scenario != nil:
			feature.Scenarios = append(feature.Scenarios, convertScenario(child.Scenario, background))
		case child.Rule != nil:
			ruleBackground := background
			for _, ruleChild := range child.Rule.Children {
				switch {
				case ruleChild.Background != nil:
					ruleBackground = append(append([]Step(nil), background...), convertSteps(ruleChild.Background.Steps)...)
				case ruleChild.Scenario != nil:
					feature.Scenarios = append(feature.Scenarios, convertScenario(ruleChild.Scenario, ruleBackground))
				}
			}
		}
	}

	return feature, nil
}

func convertScenario(sc *messages.Scenario, background []Step) Scenario {
	out := Scenario{Name: sc.Name}
	for _, tag := range sc.Tags {
		out.Tags = append(out.Tags, strings.TrimPrefix(tag.Name, "@"))
	}
	out.Steps = append(out.Steps, background...)
	out.Steps = append(out.Steps, convertSteps(sc.Steps)...)
	return out
}

func convertSteps(in []*messages.Step) []Step {
	out := make([]Step, 0, len(in))
	for _, step := range in {
		out = append(out, Step{
			Keyword: strings.TrimSpace(step.Keyword),
			Text:    step.Text,
		})
	}
	return out
}

var errNoFeature = errors.New("file contains no feature")
