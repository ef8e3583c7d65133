package wps

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ExecuteResult is the service's answer to an execute request.
type ExecuteResult struct {
	Accepted       bool
	StatusLocation string
	Reason         string // set when not accepted
}

// Phase of a remote process.
type Phase int

// Phase constants
const (
	PhaseRunning Phase = iota
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is one reading of a status document.
type Status struct {
	Phase   Phase
	Percent int               // progress reported while running, -1 if absent
	Outputs map[string]string // output id -> reference or literal value
	Reason  string            // failure reason
}

// Output returns the value of output id, or "" when absent.
func (s Status) Output(id string) string {
	return s.Outputs[id]
}

// document is what a token scan collects from an execute or status response.
type document struct {
	root           string
	statusLocation string
	status         string // local name of the element inside wps:Status
	statusText     string
	percent        int
	exceptions     []string
	outputs        map[string]string
}

// ParseExecuteResponse reads the response to an execute request. A response
// without a status location cannot be tracked and counts as a rejection.
func ParseExecuteResponse(body []byte) (ExecuteResult, error) {
	doc, err := scan(body)
	if err != nil {
		return ExecuteResult{}, err
	}

	switch {
	case doc.root == "ExceptionReport":
		return ExecuteResult{Reason: exceptionReason(doc)}, nil
	case doc.root != "ExecuteResponse":
		return ExecuteResult{}, fmt.Errorf("unexpected document %q", doc.root)
	case doc.status == "ProcessFailed":
		return ExecuteResult{Reason: exceptionReason(doc)}, nil
	case doc.statusLocation == "":
		return ExecuteResult{Reason: "response has no status location"}, nil
	}
	return ExecuteResult{Accepted: true, StatusLocation: doc.statusLocation}, nil
}

// ParseStatus reads a status document.
func ParseStatus(body []byte) (Status, error) {
	doc, err := scan(body)
	if err != nil {
		return Status{}, err
	}

	if doc.root == "ExceptionReport" {
		return Status{Phase: PhaseFailed, Percent: -1, Reason: exceptionReason(doc)}, nil
	}
	if doc.root != "ExecuteResponse" {
		return Status{}, fmt.Errorf("unexpected document %q", doc.root)
	}

	st := Status{Percent: doc.percent, Outputs: doc.outputs}
	switch doc.status {
	case "ProcessAccepted", "ProcessStarted", "ProcessPaused":
		st.Phase = PhaseRunning
	case "ProcessSucceeded":
		st.Phase = PhaseSucceeded
		st.Percent = 100
	case "ProcessFailed":
		st.Phase = PhaseFailed
		st.Reason = exceptionReason(doc)
	case "":
		return Status{}, fmt.Errorf("status document has no status")
	default:
		return Status{}, fmt.Errorf("unknown process status %q", doc.status)
	}
	return st, nil
}

func exceptionReason(doc *document) string {
	reason := strings.Join(doc.exceptions, "; ")
	switch {
	case doc.status == "ProcessFailed" && reason != "":
		return "ProcessFailed: " + reason
	case doc.status == "ProcessFailed" && doc.statusText != "":
		return "ProcessFailed: " + doc.statusText
	case doc.status == "ProcessFailed":
		return "ProcessFailed"
	case reason != "":
		return "ExceptionReport: " + reason
	default:
		return "ExceptionReport"
	}
}

// scan walks the document once, matching elements by local name so that
// namespace prefixes chosen by the service do not matter.
func scan(body []byte) (*document, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	doc := &document{percent: -1, outputs: make(map[string]string)}

	var stack []string
	var outputID, outputValue string
	var exceptionCode string
	var exceptionCount int
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("malformed response: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			parent := ""
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			stack = append(stack, name)

			switch {
			case len(stack) == 1:
				doc.root = name
				doc.statusLocation = attr(t, "statusLocation")
			case parent == "Status" && doc.status == "":
				doc.status = name
				if p, err := strconv.Atoi(attr(t, "percentCompleted")); err == nil {
					doc.percent = p
				}
				if name != "ProcessFailed" {
					text, err := readElementText(dec)
					if err != nil {
						return nil, fmt.Errorf("malformed response: %w", err)
					}
					doc.statusText = strings.TrimSpace(text)
					stack = stack[:len(stack)-1]
				}
			case name == "Exception":
				exceptionCode = attr(t, "exceptionCode")
				exceptionCount = len(doc.exceptions)
			case name == "ExceptionText":
				text, err := readElementText(dec)
				if err != nil {
					return nil, fmt.Errorf("malformed response: %w", err)
				}
				stack = stack[:len(stack)-1]
				if text = strings.TrimSpace(text); text != "" {
					doc.exceptions = append(doc.exceptions, text)
				}
			case name == "Identifier" && parent == "Output":
				text, err := readElementText(dec)
				if err != nil {
					return nil, fmt.Errorf("malformed response: %w", err)
				}
				stack = stack[:len(stack)-1]
				outputID = strings.TrimSpace(text)
			case name == "Reference" && inOutput(stack):
				outputValue = attr(t, "href")
			case name == "LiteralData" && inOutput(stack):
				text, err := readElementText(dec)
				if err != nil {
					return nil, fmt.Errorf("malformed response: %w", err)
				}
				stack = stack[:len(stack)-1]
				outputValue = strings.TrimSpace(text)
			}
		case xml.EndElement:
			name := t.Name.Local
			if name == "Output" {
				if outputID != "" && len(stack) >= 2 && stack[len(stack)-2] == "ProcessOutputs" {
					doc.outputs[outputID] = outputValue
				}
				outputID, outputValue = "", ""
			}
			// An exception without text is reported by its code.
			if name == "Exception" && exceptionCode != "" && len(doc.exceptions) == exceptionCount {
				doc.exceptions = append(doc.exceptions, exceptionCode)
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if doc.root == "" {
		return nil, fmt.Errorf("malformed response: empty document")
	}
	return doc, nil
}

func inOutput(stack []string) bool {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == "Output" {
			return true
		}
	}
	return false
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func readElementText(dec *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write([]byte(t))
		}
	}
	return b.String(), nil
}
