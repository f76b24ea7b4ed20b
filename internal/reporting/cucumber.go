package reporting

import (
	"encoding/base64"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"

	"github.com/xkilldash9x/klassi-cli/internal/results"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// rawJSON keeps numbers as written so a rewritten results file does not lose precision.
var rawJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Feature is one entry of the cucumber JSON results file.
type Feature struct {
	URI         string    `json:"uri"`
	ID          string    `json:"id"`
	Keyword     string    `json:"keyword"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Line        int       `json:"line"`
	Tags        []Tag     `json:"tags,omitempty"`
	Elements    []Element `json:"elements"`
}

type Tag struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Element is a scenario or background.
type Element struct {
	ID          string `json:"id"`
	Keyword     string `json:"keyword"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Line        int    `json:"line"`
	Type        string `json:"type"`
	Tags        []Tag  `json:"tags,omitempty"`
	Steps       []Step `json:"steps"`
}

type Step struct {
	Keyword    string      `json:"keyword"`
	Name       string      `json:"name"`
	Line       int         `json:"line"`
	Match      Match       `json:"match"`
	Result     Result      `json:"result"`
	Embeddings []Embedding `json:"embeddings,omitempty"`
}

type Match struct {
	Location string `json:"location,omitempty"`
}

type Result struct {
	Status string `json:"status"`
	// Duration is in nanoseconds.
	Duration int64  `json:"duration,omitempty"`
	Error    string `json:"error_message,omitempty"`
}

// Embedding is base64 data attached to a step.
type Embedding struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Status folds the step results into a scenario outcome.
func (e Element) Status() results.Status {
	status := results.StatusPassed
	for _, s := range e.Steps {
		switch results.Status(s.Result.Status) {
		case results.StatusFailed:
			return results.StatusFailed
		case results.StatusUndefined:
			status = results.StatusUndefined
		case results.StatusPending:
			if status != results.StatusUndefined {
				status = results.StatusPending
			}
		case results.StatusSkipped:
			if status == results.StatusPassed {
				status = results.StatusSkipped
			}
		}
	}
	return status
}

// Duration sums the step durations in nanoseconds.
func (e Element) Duration() int64 {
	var total int64
	for _, s := range e.Steps {
		total += s.Result.Duration
	}
	return total
}

// ReadFeatures parses the cucumber JSON at path.
func ReadFeatures(fs afero.Fs, path string) ([]Feature, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file %s: %w", path, err)
	}
	var features []Feature
	if err := json.Unmarshal(data, &features); err != nil {
		return nil, &BadJSONError{Path: path, Err: err}
	}
	return features, nil
}

// BadJSONError is returned when the results file exists but cannot be parsed.
type BadJSONError struct {
	Path string
	Err  error
}

func (e *BadJSONError) Error() string {
	return fmt.Sprintf("malformed results file %s: %v", e.Path, e.Err)
}

func (e *BadJSONError) Unwrap() error { return e.Err }

// EmbedAttachments copies the attachments captured for each scenario into the results file,
// on the failed step or, when none failed, the last step. It returns how many were embedded.
// Only the embeddings of the chosen steps change; every other field of the file is written back as read.
func EmbedAttachments(fs afero.Fs, path string, records []results.Record) (int, error) {
	pending := 0
	for _, r := range records {
		pending += len(r.Attachments)
	}
	if pending == 0 {
		return 0, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return 0, fmt.Errorf("failed to read results file %s: %w", path, err)
	}
	var features []Feature
	if err := json.Unmarshal(data, &features); err != nil {
		return 0, &BadJSONError{Path: path, Err: err}
	}
	var raw []map[string]any
	if err := rawJSON.Unmarshal(data, &raw); err != nil {
		return 0, &BadJSONError{Path: path, Err: err}
	}

	embedded := 0
	for _, r := range records {
		if len(r.Attachments) == 0 {
			continue
		}
		fi, ei, ok := findElement(features, r.Scenario)
		if !ok {
			continue
		}
		el := &features[fi].Elements[ei]
		if len(el.Steps) == 0 {
			continue
		}
		si := len(el.Steps) - 1
		for i := range el.Steps {
			if results.Status(el.Steps[i].Result.Status) == results.StatusFailed {
				si = i
				break
			}
		}
		rawStep, err := stepAt(raw, fi, ei, si)
		if err != nil {
			return 0, &BadJSONError{Path: path, Err: err}
		}
		list, _ := rawStep["embeddings"].([]any)
		for _, a := range r.Attachments {
			e := Embedding{
				MimeType: a.MediaType,
				Data:     base64.StdEncoding.EncodeToString(a.Data),
			}
			el.Steps[si].Embeddings = append(el.Steps[si].Embeddings, e)
			list = append(list, map[string]any{"mime_type": e.MimeType, "data": e.Data})
			embedded++
		}
		rawStep["embeddings"] = list
	}

	if embedded == 0 {
		return 0, nil
	}
	out, err := rawJSON.Marshal(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to encode results: %w", err)
	}
	if err := afero.WriteFile(fs, path, out, 0o644); err != nil {
		return 0, fmt.Errorf("failed to write results file %s: %w", path, err)
	}
	return embedded, nil
}

// stepAt returns the generic object for steps[si] of elements[ei] of feature fi.
func stepAt(raw []map[string]any, fi, ei, si int) (map[string]any, error) {
	if fi >= len(raw) {
		return nil, fmt.Errorf("feature %d missing", fi)
	}
	elements, _ := raw[fi]["elements"].([]any)
	if ei >= len(elements) {
		return nil, fmt.Errorf("element %d of feature %d missing", ei, fi)
	}
	el, _ := elements[ei].(map[string]any)
	steps, _ := el["steps"].([]any)
	if si >= len(steps) {
		return nil, fmt.Errorf("step %d of element %d missing", si, ei)
	}
	step, ok := steps[si].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("step %d of element %d is not an object", si, ei)
	}
	return step, nil
}

// findElement locates the scenario by feature URI and name. Outline rows share a name, so a
// failed element that has no embeddings yet is preferred.
func findElement(features []Feature, sc results.Scenario) (fi, ei int, ok bool) {
	for i := range features {
		if features[i].URI != sc.URI {
			continue
		}
		for j := range features[i].Elements {
			el := &features[i].Elements[j]
			if el.Type == "background" || el.Name != sc.Name {
				continue
			}
			if !ok {
				fi, ei, ok = i, j, true
			}
			if el.Status() == results.StatusFailed && !hasEmbeddings(el) {
				return i, j, true
			}
		}
	}
	return fi, ei, ok
}

func hasEmbeddings(el *Element) bool {
	for _, s := range el.Steps {
		if len(s.Embeddings) > 0 {
			return true
		}
	}
	return false
}
