// Package wps builds execute requests for the remote processing service and
// reads its execute and status documents (WPS 1.0.0).
package wps

import (
	"cropstudy/internal/study"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Namespaces
const (
	nsWPS = "http://www.opengis.net/wps/1.0.0"
	nsOWS = "http://www.opengis.net/ows/1.1"
)

// ContentType of execute requests.
const ContentType = "text/xml; charset=utf-8"

// OutputIDs names the process outputs that carry each artifact.
type OutputIDs struct {
	Log     string
	States  string
	Summary string
}

// DefaultOutputIDs are the identifiers the simulation process publishes.
var DefaultOutputIDs = OutputIDs{Log: "f0", States: "f1", Summary: "f2"}

type executeRequest struct {
	XMLName    xml.Name       `xml:"wps:Execute"`
	Service    string         `xml:"service,attr"`
	Version    string         `xml:"version,attr"`
	NSWPS      string         `xml:"xmlns:wps,attr"`
	NSOWS      string         `xml:"xmlns:ows,attr"`
	Identifier string         `xml:"ows:Identifier"`
	Inputs     []literalInput `xml:"wps:DataInputs>wps:Input"`
	Response   responseForm   `xml:"wps:ResponseForm"`
}

// responseForm asks for a stored response with status updates, which makes
// the service run the process asynchronously.
type responseForm struct {
	Document struct {
		Store   bool         `xml:"storeExecuteResponse,attr"`
		Status  bool         `xml:"status,attr"`
		Outputs []outputSpec `xml:"wps:Output"`
	} `xml:"wps:ResponseDocument"`
}

type literalInput struct {
	Identifier string `xml:"ows:Identifier"`
	Value      string `xml:"wps:Data>wps:LiteralData"`
}

type outputSpec struct {
	AsReference bool   `xml:"asReference,attr"`
	Identifier  string `xml:"ows:Identifier"`
}

// BuildExecute renders the execute request for one job, asking for every
// output by reference.
func BuildExecute(processID string, job study.JobSpec, ids OutputIDs) ([]byte, error) {
	if processID == "" {
		return nil, fmt.Errorf("process id is required")
	}
	inputs, err := jobInputs(job)
	if err != nil {
		return nil, err
	}

	req := executeRequest{
		Service:    "WPS",
		Version:    "1.0.0",
		NSWPS:      nsWPS,
		NSOWS:      nsOWS,
		Identifier: processID,
		Inputs:     inputs,
	}
	req.Response.Document.Store = true
	req.Response.Document.Status = true
	req.Response.Document.Outputs = []outputSpec{
		{AsReference: true, Identifier: ids.Log},
		{AsReference: true, Identifier: ids.States},
		{AsReference: true, Identifier: ids.Summary},
	}

	body, err := xml.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execute request: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func jobInputs(job study.JobSpec) ([]literalInput, error) {
	in := []literalInput{
		{Identifier: "jobId", Value: job.ID},
		{Identifier: "title", Value: job.Title},
		{Identifier: "timeout", Value: strconv.Itoa(job.TimeoutSeconds)},
	}
	switch k := job.Kind.(type) {
	case study.ByFieldIDs:
		in = append(in,
			literalInput{Identifier: "fieldIds", Value: strings.Join(k.FieldIDs, ",")},
			literalInput{Identifier: "year", Value: strconv.Itoa(k.Year)},
		)
	case study.ByGeometry:
		in = append(in,
			literalInput{Identifier: "geometry", Value: k.Geometry},
			literalInput{Identifier: "crop", Value: strconv.Itoa(k.CropCode)},
			literalInput{Identifier: "year", Value: strconv.Itoa(k.Year)},
			literalInput{Identifier: "offset", Value: strconv.Itoa(k.Offset)},
			literalInput{Identifier: "limit", Value: strconv.Itoa(k.Limit)},
		)
	case study.ByParameterFile:
		in = append(in, literalInput{Identifier: "parameters", Value: string(k.Bundle)})
	case study.ParameterSweep:
		in = append(in,
			literalInput{Identifier: "parameters", Value: string(k.Bundle)},
			literalInput{Identifier: "sweepParameter", Value: k.Parameter},
			literalInput{Identifier: "sweepValue", Value: strconv.FormatFloat(k.Value, 'g', -1, 64)},
		)
	default:
		return nil, fmt.Errorf("unsupported job kind %q", study.KindName(job.Kind))
	}
	return in, nil
}

// CapabilitiesURL returns the GetCapabilities request for a service endpoint.
func CapabilitiesURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid service url: %w", err)
	}
	q := u.Query()
	q.Set("service", "WPS")
	q.Set("request", "GetCapabilities")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
