package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/observability"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// Output formats.
const (
	FormatJSON     = "json"
	FormatXLSX     = "xlsx"
	FormatDOCX     = "docx"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
)

// DataLabel names the report set written when no narratives exist.
const DataLabel = "data"

// Outcome describes one written, or failed, output file.
type Outcome struct {
	Format string `json:"format"`
	Label  string `json:"label"`
	Path   string `json:"path"`
	Err    error  `json:"-"`
}

// OK reports whether the output was written.
func (o Outcome) OK() bool { return o.Err == nil }

// Failed returns the outcomes that carry an error.
func Failed(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Renderer writes report files for a finished analysis.
type Renderer struct {
	dir     string
	formats []string
	now     func() time.Time
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRenderer creates a renderer. metrics may be nil.
func NewRenderer(cfg *config.ReportConfig, metrics *observability.Metrics, logger *slog.Logger) *Renderer {
	return &Renderer{
		dir:     cfg.OutputDir,
		formats: cfg.Formats,
		now:     time.Now,
		metrics: metrics,
		logger:  logger.With("component", "report"),
	}
}

// Render writes every configured format. Narrative formats get one file
// per provider label; CSV tables are written once per run. Each output
// fails on its own and is reported in the returned outcomes.
func (r *Renderer) Render(result *types.Result, narratives []*types.Narratives) []Outcome {
	if len(narratives) == 0 {
		narratives = []*types.Narratives{{Provider: DataLabel}}
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		err = fmt.Errorf("create output dir: %w", err)
		var out []Outcome
		for _, f := range r.formats {
			out = append(out, r.record(Outcome{Format: f, Path: r.dir, Err: &types.ExportError{Format: f, Path: r.dir, Err: err}}))
		}
		return out
	}

	platform := platformName(result)
	var out []Outcome
	for _, format := range r.formats {
		if format == FormatCSV {
			out = append(out, r.writeCSV(result, platform)...)
			continue
		}
		for _, n := range narratives {
			label := SafeLabel(n.Provider)
			path := r.Path(platform, format, label)
			err := r.write(format, path, result, n)
			if err != nil {
				err = &types.ExportError{Format: format, Path: path, Err: err}
			}
			out = append(out, r.record(Outcome{Format: format, Label: label, Path: path, Err: err}))
		}
	}
	return out
}

// Path returns the file a format is written to for label.
func (r *Renderer) Path(platform, format, label string) string {
	if format == FormatJSON {
		return filepath.Join(r.dir, fmt.Sprintf("%s_analysis_raw_%s.json", platform, label))
	}
	return filepath.Join(r.dir, fmt.Sprintf("%s_analysis_%s.%s", platform, label, format))
}

func (r *Renderer) write(format, path string, result *types.Result, n *types.Narratives) error {
	switch format {
	case FormatJSON:
		return writeFile(path, func(f *os.File) error { return writeRaw(f, result, n, r.now()) })
	case FormatXLSX:
		return writeXLSX(path, result, n)
	case FormatDOCX:
		return writeFile(path, func(f *os.File) error { return writeDOCX(f, buildDocument(result, n)) })
	case FormatMarkdown:
		return writeFile(path, func(f *os.File) error { return writeMarkdown(f, buildDocument(result, n)) })
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

func (r *Renderer) record(o Outcome) Outcome {
	if o.Err != nil {
		r.logger.Error("report output failed", "format", o.Format, "label", o.Label, "error", o.Err)
		if r.metrics != nil {
			r.metrics.ExportsFailed.Add(1)
		}
		return o
	}
	r.logger.Info("report written", "format", o.Format, "label", o.Label, "path", o.Path)
	if r.metrics != nil {
		r.metrics.ExportsOK.Add(1)
	}
	return o
}

// writeFile writes through a temporary file. path only appears once fn
// succeeds.
func writeFile(path string, fn func(f *os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close output file: %w", err)
	}
	return os.Rename(tmp, path)
}

var unsafeLabel = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SafeLabel makes a provider label usable in a file name.
func SafeLabel(label string) string {
	s := strings.Trim(unsafeLabel.ReplaceAllString(strings.TrimSpace(label), "_"), "_")
	if s == "" {
		return DataLabel
	}
	return s
}

func platformName(r *types.Result) string {
	if r != nil && r.Identity != nil && r.Identity.Platform != "" {
		return string(r.Identity.Platform)
	}
	return "product"
}

func platformTitle(r *types.Result) string {
	if r != nil && r.Identity != nil && r.Identity.Platform == types.PlatformNaver {
		return "네이버 스마트스토어 상품 분석 리포트"
	}
	return "쿠팡 상품 분석 리포트"
}
