// Package fingerprint computes acoustic fingerprints with the chromaprint
// fpcalc tool. The fingerprint is a content-derived identifier, so catalog
// lookup works independently of filenames and existing tags.
package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"tunetag/internal/metadata"
)

// ErrFpcalcNotFound is returned when the fpcalc binary is not on PATH.
var ErrFpcalcNotFound = errors.New("fpcalc binary not found")

const fpcalcTimeout = 30 * time.Second

// Chromaprint shells out to fpcalc and implements metadata.Fingerprinter.
type Chromaprint struct {
	binary string
}

// New creates a Chromaprint wrapper. binary overrides the fpcalc path;
// empty means "fpcalc" from PATH.
func New(binary string) *Chromaprint {
	if binary == "" {
		binary = "fpcalc"
	}
	return &Chromaprint{binary: binary}
}

// Available reports whether the fpcalc binary can be found.
func (c *Chromaprint) Available() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

// Fingerprint computes the fingerprint and decoded duration of one file.
func (c *Chromaprint) Fingerprint(ctx context.Context, path string) (*metadata.FingerprintQuery, error) {
	if _, err := exec.LookPath(c.binary); err != nil {
		return nil, ErrFpcalcNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, fpcalcTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, "-json", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fpcalc timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("fpcalc failed: %w: %s", err, stderr.String())
	}

	var out struct {
		Duration    float64 `json:"duration"`
		Fingerprint string  `json:"fingerprint"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("parse fpcalc output: %w", err)
	}
	if out.Fingerprint == "" {
		return nil, fmt.Errorf("fpcalc produced no fingerprint for %s", path)
	}

	return &metadata.FingerprintQuery{
		Fingerprint: out.Fingerprint,
		Duration:    time.Duration(out.Duration * float64(time.Second)),
	}, nil
}
