// Package dcm4chee is a thin REST client for the dcm4chee archive's study
// endpoints: the read-only study lookup and the proprietary move-between-
// patients operation.
package dcm4chee

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MoveCode is the dcm4chee coded-value path segment for the study move
// operation (DCM 113037, "Moved procedure step").
const MoveCode = "113037^DCM"

// maxBodyBytes caps how much of an archive response body is retained for
// diagnostics.
const maxBodyBytes = 1 << 20

// Outcome is the raw result of one archive HTTP exchange. The client captures
// the status code and body without interpreting them; classifying statuses
// into retryable and terminal failures is the batch engine's job.
type Outcome struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the exchange returned a 2xx status.
func (o *Outcome) OK() bool {
	return o.StatusCode >= 200 && o.StatusCode <= 299
}

// DecodedBody returns the response body as parsed JSON when it parses, or as
// a plain string otherwise.
func (o *Outcome) DecodedBody() any {
	var decoded any
	if err := json.Unmarshal(o.Body, &decoded); err == nil {
		return decoded
	}
	return string(o.Body)
}

// ErrorMessage extracts dcm4chee's errorMessage field from an error body,
// falling back to the trimmed raw body.
func (o *Outcome) ErrorMessage() string {
	var body struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(o.Body, &body); err == nil && body.ErrorMessage != "" {
		return body.ErrorMessage
	}
	return strings.TrimSpace(string(o.Body))
}

// MoveRequest identifies one study move.
type MoveRequest struct {
	SourceStudyUID    string
	TargetStudyUID    string
	TargetPatientID   string
	IssuerOfPatientID string
}

// Options configures a Client.
type Options struct {
	// BaseURL is the archive root, e.g. https://pacs.example.org:8443.
	BaseURL string
	// AET is the archive application entity title.
	AET string
	// Timeout bounds each call. Zero means 60 seconds.
	Timeout time.Duration
	// Insecure skips TLS verification.
	Insecure bool
	// Logger receives per-call debug lines. Zero value disables logging.
	Logger zerolog.Logger
}

// Client issues archive REST calls. It holds no mutable state and is safe for
// concurrent use by many workers.
type Client struct {
	baseURL    string
	aet        string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient builds a Client from opts.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("archive base URL is required")
	}
	if opts.AET == "" {
		return nil, fmt.Errorf("archive AET is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	transport := http.DefaultTransport
	if opts.Insecure {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // --insecure opt-in
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		aet:        opts.AET,
		httpClient: &http.Client{Transport: transport, Timeout: opts.Timeout},
		logger:     opts.Logger,
	}, nil
}

// MoveStudy moves the source study onto the target patient record under a new
// StudyInstanceUID:
//
//	POST {base}/dcm4chee-arc/aets/{AET}/rs/studies/{TargetStudyUID}/move/113037^DCM
//	     ?PatientID={pid}&IssuerOfPatientID={issuer}
//
// with body {"StudyInstanceUID": "<source>"}. Any completed HTTP exchange is
// returned as an Outcome, whatever its status; a transport failure (including
// timeout) returns a nil Outcome and an error.
func (c *Client) MoveStudy(ctx context.Context, token string, req MoveRequest) (*Outcome, error) {
	moveURL := fmt.Sprintf("%s/dcm4chee-arc/aets/%s/rs/studies/%s/move/%s",
		c.baseURL,
		url.PathEscape(c.aet),
		url.PathEscape(req.TargetStudyUID),
		url.PathEscape(MoveCode))

	query := url.Values{
		"PatientID":         {req.TargetPatientID},
		"IssuerOfPatientID": {req.IssuerOfPatientID},
	}
	moveURL += "?" + query.Encode()

	payload, err := json.Marshal(map[string]string{"StudyInstanceUID": req.SourceStudyUID})
	if err != nil {
		return nil, fmt.Errorf("encoding move payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, moveURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building move request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	outcome, err := c.do(httpReq, token)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("source_study_uid", req.SourceStudyUID).
		Str("target_study_uid", req.TargetStudyUID).
		Int("http_status", outcome.StatusCode).
		Msg("move study call completed")
	return outcome, nil
}

// ShowStudy fetches the study's DICOM attributes:
//
//	GET {base}/dcm4chee-arc/aets/{AET}/rs/studies/{StudyUID}
//
// The body is passed through opaquely; callers decode it via Outcome.
func (c *Client) ShowStudy(ctx context.Context, token, studyUID string) (*Outcome, error) {
	showURL := fmt.Sprintf("%s/dcm4chee-arc/aets/%s/rs/studies/%s",
		c.baseURL,
		url.PathEscape(c.aet),
		url.PathEscape(studyUID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, showURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building show request: %w", err)
	}

	outcome, err := c.do(httpReq, token)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("study_uid", studyUID).
		Int("http_status", outcome.StatusCode).
		Msg("show study call completed")
	return outcome, nil
}

// do executes the request with bearer auth and captures the response.
func (c *Client) do(req *http.Request, token string) (*Outcome, error) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling archive: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading archive response: %w", err)
	}
	return &Outcome{StatusCode: resp.StatusCode, Body: body}, nil
}
