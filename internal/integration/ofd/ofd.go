// Package ofd fetches fiscal register (KKT) state from the fiscal data operator.
//
// The lookup is an external executable. It is invoked as
//
//	<script> <kkt_reg_id>
//
// with the operator token in the OFD_TOKEN environment variable, and prints one
// JSON object on stdout. A non-zero exit or an "error" member fails the lookup.
//
// Import Path: supportportal.io/portal/internal/integration/ofd
package ofd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/pkg/logger"
)

const (
	defaultTimeout = 30 * time.Second
	maxStderr      = 512
)

var (
	// ErrDisabled is returned when no lookup script is configured.
	ErrDisabled = errors.New("ofd: lookup script is not configured")
	// ErrNoToken is returned when the OFD company has no token.
	ErrNoToken = errors.New("ofd: company token is empty")
)

// Client runs the lookup script.
type Client struct {
	script  string
	timeout time.Duration
	now     func() time.Time
}

// NewClient creates a Client. An empty script disables lookups.
func NewClient(script string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{script: script, timeout: timeout, now: time.Now}
}

// Enabled reports whether a script is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.script != ""
}

// response is the script's output. Dates use any of the layouts in parseTime.
type response struct {
	Error             string `json:"error"`
	RegID             string `json:"kkt_reg_id"`
	SerialNumber      string `json:"serial_number"`
	FNNumber          string `json:"fn_number"`
	Model             string `json:"kkt_model"`
	CreateDate        string `json:"create_date"`
	CheckDate         string `json:"check_date"`
	ActivationDate    string `json:"activation_date"`
	FirstDocumentDate string `json:"first_document_date"`
	ContractStartDate string `json:"contract_start_date"`
	ContractEndDate   string `json:"contract_end_date"`
	FNEndDate         string `json:"fn_end_date"`
	LastDocOnKKT      string `json:"last_doc_on_kkt"`
	LastDocOnOFD      string `json:"last_doc_on_ofd"`
	FiscalAddress     string `json:"fiscal_address"`
}

// Fetch looks up one registration number. The result carries no IDs.
func (c *Client) Fetch(ctx context.Context, token, regID string) (*domain.KKTData, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if token == "" {
		return nil, ErrNoToken
	}
	regID = strings.TrimSpace(regID)
	if regID == "" {
		return nil, errors.New("ofd: empty registration number")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.script, regID)
	cmd.Env = append(os.Environ(), "OFD_TOKEN="+token)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := c.now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ofd lookup %s: %w", regID, ctx.Err())
		}
		return nil, fmt.Errorf("ofd lookup %s: %w: %s", regID, err, clip(stderr.String()))
	}

	data, err := decode(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("ofd lookup %s: %w", regID, err)
	}
	if data.RegID == "" {
		data.RegID = regID
	}
	data.FetchedAt = c.now()

	logger.Debug("ofd lookup finished",
		zap.String("kkt_reg_id", regID),
		zap.Duration("took", data.FetchedAt.Sub(start)),
	)
	return data, nil
}

func decode(out []byte) (*domain.KKTData, error) {
	out = bytes.TrimSpace(out)
	var r response
	if err := json.Unmarshal(out, &r); err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	if r.Error != "" {
		return nil, fmt.Errorf("operator error: %s", r.Error)
	}
	return &domain.KKTData{
		RegID:             strings.TrimSpace(r.RegID),
		SerialNumber:      r.SerialNumber,
		FNNumber:          r.FNNumber,
		Model:             r.Model,
		CreateDate:        parseTime(r.CreateDate),
		CheckDate:         parseTime(r.CheckDate),
		ActivationDate:    parseTime(r.ActivationDate),
		FirstDocumentDate: parseTime(r.FirstDocumentDate),
		ContractStartDate: parseTime(r.ContractStartDate),
		ContractEndDate:   parseTime(r.ContractEndDate),
		FNEndDate:         parseTime(r.FNEndDate),
		LastDocOnKKT:      parseTime(r.LastDocOnKKT),
		LastDocOnOFD:      parseTime(r.LastDocOnOFD),
		FiscalAddress:     r.FiscalAddress,
		RawData:           json.RawMessage(append([]byte(nil), out...)),
	}, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006",
}

// parseTime returns nil for empty or unrecognised values.
func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		return s[:maxStderr] + "..."
	}
	return s
}
