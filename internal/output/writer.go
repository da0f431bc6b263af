package output

import (
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banton/medical-patients-sub001/internal/models"
	"github.com/banton/medical-patients-sub001/pkg/crypto"
)

// Options controls output generation for one job.
type Options struct {
	Formats         []string // "json", "csv"
	Compress        bool
	EncryptPassword string // empty means no encryption
	Concurrent      bool   // one goroutine per format, for large cohorts
}

// WriteAll writes the patient cohort in every requested format under dir.
// Returns the produced file paths.
func WriteAll(patients []*models.Patient, dir string, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	if len(opts.Formats) == 0 {
		opts.Formats = []string{"json"}
	}

	paths := make([]string, len(opts.Formats))
	if opts.Concurrent {
		var g errgroup.Group
		for i, format := range opts.Formats {
			i, format := i, format
			g.Go(func() error {
				path, err := writeFormat(patients, dir, format, opts)
				if err != nil {
					return err
				}
				paths[i] = path
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return paths, nil
	}

	for i, format := range opts.Formats {
		path, err := writeFormat(patients, dir, format, opts)
		if err != nil {
			return nil, err
		}
		paths[i] = path
	}
	return paths, nil
}

func writeFormat(patients []*models.Patient, dir, format string, opts Options) (string, error) {
	name := "patients." + format
	if opts.Compress {
		name += ".gz"
	}
	if opts.EncryptPassword != "" {
		name += ".enc"
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	var w io.Writer = f
	var enc *encryptBuffer
	if opts.EncryptPassword != "" {
		// Encryption is whole-file authenticated; buffer then seal.
		enc = &encryptBuffer{}
		w = enc
	}

	var gz *gzip.Writer
	if opts.Compress {
		gz = gzip.NewWriter(w)
		w = gz
	}

	switch format {
	case "json":
		err = streamJSON(patients, w)
	case "csv":
		err = streamCSV(patients, w)
	default:
		err = fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return "", err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return "", fmt.Errorf("failed to finish gzip: %w", err)
		}
	}
	if enc != nil {
		encryptor, err := crypto.NewEncryptor(opts.EncryptPassword)
		if err != nil {
			return "", err
		}
		sealed, err := encryptor.Encrypt(enc.buf)
		if err != nil {
			return "", err
		}
		if _, err := f.Write(sealed); err != nil {
			return "", fmt.Errorf("failed to write encrypted output: %w", err)
		}
	}
	return path, nil
}

type encryptBuffer struct{ buf []byte }

func (b *encryptBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// streamJSON emits a top-level JSON array one patient at a time, bounding
// memory to a single encoded patient.
func streamJSON(patients []*models.Patient, w io.Writer) error {
	if _, err := io.WriteString(w, "[\n"); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for i, p := range patients {
		if i > 0 {
			if _, err := io.WriteString(w, ",\n"); err != nil {
				return err
			}
		}
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("failed to encode patient %s: %w", p.ID, err)
		}
	}
	_, err := io.WriteString(w, "]\n")
	return err
}

var csvHeader = []string{
	"id", "injury_type", "severity", "severity_band", "body_part",
	"true_condition", "initial_health", "current_health", "triage_category",
	"state", "location", "injured_at", "treatment_count", "diagnosis_count",
	"latest_diagnosis", "timeline_events",
}

// streamCSV flattens each patient to one row.
func streamCSV(patients []*models.Patient, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range patients {
		latest := ""
		if d := p.LatestDiagnosis(); d != nil {
			latest = d.DiagnosedCode
		}
		row := []string{
			p.ID,
			string(p.InjuryType),
			strconv.Itoa(p.Severity),
			string(p.Band),
			p.BodyPart,
			p.TrueCondition,
			strconv.FormatFloat(p.InitialHealth, 'f', 1, 64),
			strconv.FormatFloat(p.CurrentHealth, 'f', 1, 64),
			string(p.Triage),
			string(p.State),
			p.Location,
			p.InjuredAt.Format(time.RFC3339),
			strconv.Itoa(len(p.Treatments)),
			strconv.Itoa(len(p.Diagnoses)),
			latest,
			strconv.Itoa(len(p.Timeline)),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
