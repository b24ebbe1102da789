package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/formatters"
	messages "github.com/cucumber/messages/go/v21"
)

// Name is the format name accepted by settings.output
const Name = "uitest"

// EventPrefix marks structured lines in the output stream
const EventPrefix = "UITEST_EVENT:"

// Event types for structured output
const (
	EventFeatureStart  = "feature_start"
	EventFeatureEnd    = "feature_end"
	EventScenarioStart = "scenario_start"
	EventScenarioEnd   = "scenario_end"
	EventStepEnd       = "step_end"
	EventSummary       = "summary"
)

// Step statuses
const (
	StatusPassed    = "passed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusUndefined = "undefined"
	StatusPending   = "pending"
	StatusAmbiguous = "ambiguous"
)

// Event represents a structured test event
type Event struct {
	Type     string `json:"type"`
	Suite    string `json:"suite,omitempty"`
	Feature  string `json:"feature,omitempty"`
	Scenario string `json:"scenario,omitempty"`
	Step     string `json:"step,omitempty"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
	File     string `json:"file,omitempty"`

	// Summary fields
	Total   int `json:"total,omitempty"`
	Passed  int `json:"passed,omitempty"`
	Failed  int `json:"failed,omitempty"`
	Skipped int `json:"skipped,omitempty"`
}

// Formatter writes one UITEST_EVENT line per feature, scenario and step
// boundary, followed by a short human-readable summary.
type Formatter struct {
	suite string
	out   io.Writer

	currentFeature     string
	currentFeatureFile string
	currentScenario    string
	currentScenarioErr string
	scenarioHadFailure bool
	scenarioHadSteps   bool
	scenarioAllSkipped bool

	scenarioTotal   int
	scenarioPassed  int
	scenarioFailed  int
	scenarioSkipped int
	stepsPassed     int
	stepsFailed     int
	stepsSkipped    int
}

func init() {
	godog.Format(Name, "uitest structured JSON formatter", New)
}

// New creates a new Formatter
func New(suite string, out io.Writer) formatters.Formatter {
	return &Formatter{
		suite: suite,
		out:   out,
	}
}

func (f *Formatter) emit(event Event) {
	event.Suite = f.suite
	data, _ := json.Marshal(event)
	fmt.Fprintf(f.out, "%s%s\n", EventPrefix, data)
}

// TestRunStarted is called when the test run starts
func (f *Formatter) TestRunStarted() {}

// Feature is called when a feature file is parsed
func (f *Formatter) Feature(doc *messages.GherkinDocument, uri string, content []byte) {
	if f.currentFeature != "" && uri == f.currentFeatureFile {
		return
	}
	f.endScenario()
	f.endFeature()

	if doc.Feature == nil {
		return
	}
	f.currentFeature = doc.Feature.Name
	f.currentFeatureFile = uri
	f.emit(Event{
		Type:    EventFeatureStart,
		Feature: doc.Feature.Name,
		File:    uri,
	})
}

// Pickle is called when a scenario is about to run
func (f *Formatter) Pickle(pickle *messages.Pickle) {
	f.endScenario()

	f.currentScenario = pickle.Name
	f.currentScenarioErr = ""
	f.scenarioHadFailure = false
	f.scenarioHadSteps = false
	f.scenarioAllSkipped = true
	f.scenarioTotal++

	f.emit(Event{
		Type:     EventScenarioStart,
		Feature:  f.currentFeature,
		Scenario: pickle.Name,
		File:     f.currentFeatureFile,
	})
}

func (f *Formatter) endFeature() {
	if f.currentFeature == "" {
		return
	}
	f.emit(Event{
		Type:    EventFeatureEnd,
		Feature: f.currentFeature,
		File:    f.currentFeatureFile,
	})
	f.currentFeature = ""
	f.currentFeatureFile = ""
}

func (f *Formatter) endScenario() {
	if f.currentScenario == "" {
		return
	}

	status := StatusPassed
	switch {
	case f.scenarioHadFailure:
		status = StatusFailed
		f.scenarioFailed++
	case f.scenarioHadSteps && f.scenarioAllSkipped:
		status = StatusSkipped
		f.scenarioSkipped++
	default:
		f.scenarioPassed++
	}

	f.emit(Event{
		Type:     EventScenarioEnd,
		Feature:  f.currentFeature,
		Scenario: f.currentScenario,
		Status:   status,
		Error:    f.currentScenarioErr,
	})
	f.currentScenario = ""
}

func (f *Formatter) step(pickle *messages.Pickle, step *messages.PickleStep, status string, err error) {
	f.scenarioHadSteps = true
	if status != StatusSkipped {
		f.scenarioAllSkipped = false
	}

	event := Event{
		Type:     EventStepEnd,
		Feature:  f.currentFeature,
		Scenario: pickle.Name,
		Step:     step.Text,
		Status:   status,
	}
	if err != nil {
		event.Error = err.Error()
	}

	switch status {
	case StatusPassed:
		f.stepsPassed++
	case StatusFailed, StatusAmbiguous, StatusUndefined:
		f.stepsFailed++
		f.scenarioHadFailure = true
		if event.Error == "" {
			event.Error = status + " step"
		}
		if f.currentScenarioErr == "" {
			f.currentScenarioErr = event.Error
		}
	default:
		f.stepsSkipped++
	}

	f.emit(event)
}

// Defined is called when a step definition is found
func (f *Formatter) Defined(*messages.Pickle, *messages.PickleStep, *formatters.StepDefinition) {}

// Passed is called when a step passes
func (f *Formatter) Passed(pickle *messages.Pickle, step *messages.PickleStep, _ *formatters.StepDefinition) {
	f.step(pickle, step, StatusPassed, nil)
}

// Failed is called when a step fails
func (f *Formatter) Failed(pickle *messages.Pickle, step *messages.PickleStep, _ *formatters.StepDefinition, err error) {
	f.step(pickle, step, StatusFailed, err)
}

// Skipped is called when a step is skipped
func (f *Formatter) Skipped(pickle *messages.Pickle, step *messages.PickleStep, _ *formatters.StepDefinition) {
	f.step(pickle, step, StatusSkipped, nil)
}

// Undefined is called when a step has no matching definition
func (f *Formatter) Undefined(pickle *messages.Pickle, step *messages.PickleStep, _ *formatters.StepDefinition) {
	f.step(pickle, step, StatusUndefined, nil)
}

// Pending is called when a step is pending
func (f *Formatter) Pending(pickle *messages.Pickle, step *messages.PickleStep, _ *formatters.StepDefinition) {
	f.step(pickle, step, StatusPending, nil)
}

// Ambiguous is called when a step matches multiple definitions
func (f *Formatter) Ambiguous(pickle *messages.Pickle, step *messages.PickleStep, _ *formatters.StepDefinition, err error) {
	f.step(pickle, step, StatusAmbiguous, err)
}

// Summary is called after all tests complete
func (f *Formatter) Summary() {
	f.endScenario()
	f.endFeature()

	f.emit(Event{
		Type:    EventSummary,
		Total:   f.scenarioTotal,
		Passed:  f.scenarioPassed,
		Failed:  f.scenarioFailed,
		Skipped: f.scenarioSkipped,
	})

	fmt.Fprintln(f.out)
	fmt.Fprintf(f.out, "%d scenarios (%d passed", f.scenarioTotal, f.scenarioPassed)
	if f.scenarioFailed > 0 {
		fmt.Fprintf(f.out, ", %d failed", f.scenarioFailed)
	}
	if f.scenarioSkipped > 0 {
		fmt.Fprintf(f.out, ", %d skipped", f.scenarioSkipped)
	}
	fmt.Fprintln(f.out, ")")

	totalSteps := f.stepsPassed + f.stepsFailed + f.stepsSkipped
	fmt.Fprintf(f.out, "%d steps (%d passed", totalSteps, f.stepsPassed)
	if f.stepsFailed > 0 {
		fmt.Fprintf(f.out, ", %d failed", f.stepsFailed)
	}
	if f.stepsSkipped > 0 {
		fmt.Fprintf(f.out, ", %d skipped", f.stepsSkipped)
	}
	fmt.Fprintln(f.out, ")")
}

// ParseEvents extracts the structured events from formatter output, ignoring
// every other line.
func ParseEvents(output []byte) ([]Event, error) {
	var events []Event
	for _, line := range bytes.Split(output, []byte("\n")) {
		payload, ok := bytes.CutPrefix(line, []byte(EventPrefix))
		if !ok {
			continue
		}
		var e Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("parsing event %q: %w", line, err)
		}
		events = append(events, e)
	}
	return events, nil
}
