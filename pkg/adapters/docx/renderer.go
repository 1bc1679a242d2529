// Package docx renders the finished meeting protocol as a Word document.
package docx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aretw0/minutes/internal/logging"
	"github.com/aretw0/minutes/pkg/domain"
	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"
)

const (
	fontSize     = 11
	titleSize    = 16
	subtitleSize = 14
	sectionSize  = 12
	signatureGap = "                    "
	signatureRun = "______________________________"
)

// Labels are the fixed captions printed in the document.
type Labels struct {
	Title              string `yaml:"title" mapstructure:"title"`
	Date               string `yaml:"date" mapstructure:"date"`
	ProjectNumber      string `yaml:"project_number" mapstructure:"project_number"`
	ContractYear       string `yaml:"contract_year" mapstructure:"contract_year"`
	ProjectType        string `yaml:"project_type" mapstructure:"project_type"`
	ObjectName         string `yaml:"object_name" mapstructure:"object_name"`
	ClientName         string `yaml:"client_name" mapstructure:"client_name"`
	Questions          string `yaml:"questions" mapstructure:"questions"`
	Decisions          string `yaml:"decisions" mapstructure:"decisions"`
	StudioSignature    string `yaml:"studio_signature" mapstructure:"studio_signature"`
	ClientSignature    string `yaml:"client_signature" mapstructure:"client_signature"`
	EmptySectionMarker string `yaml:"empty_section" mapstructure:"empty_section"`
}

// DefaultLabels returns the English captions.
func DefaultLabels() Labels {
	return Labels{
		Title:              "MEETING PROTOCOL",
		Date:               "Date:",
		ProjectNumber:      "Project number:",
		ContractYear:       "Contract year:",
		ProjectType:        "Project type:",
		ObjectName:         "Object name:",
		ClientName:         "Client:",
		Questions:          "KEY QUESTIONS",
		Decisions:          "DECISIONS MADE",
		StudioSignature:    "Studio representative",
		ClientSignature:    "Client representative",
		EmptySectionMarker: "(none)",
	}
}

// Config controls fonts and brand colors. Colors are hex RGB without '#'.
type Config struct {
	Font           string `yaml:"font" mapstructure:"font"`
	PrimaryColor   string `yaml:"primary_color" mapstructure:"primary_color"`
	SecondaryColor string `yaml:"secondary_color" mapstructure:"secondary_color"`
	Labels         Labels `yaml:"labels" mapstructure:"labels"`
}

// DefaultConfig returns the brand defaults.
func DefaultConfig() Config {
	return Config{
		Font:           "Times New Roman",
		PrimaryColor:   "2980B9",
		SecondaryColor: "34495E",
		Labels:         DefaultLabels(),
	}
}

// Renderer implements ports.Renderer and ports.DocumentNamer.
type Renderer struct {
	cfg     Config
	tempDir string
	logger  *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// WithTempDir sets where documents are staged before being read back.
func WithTempDir(dir string) Option {
	return func(r *Renderer) { r.tempDir = dir }
}

// New creates a Renderer. Empty config values fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *Renderer {
	def := DefaultConfig()
	if cfg.Font == "" {
		cfg.Font = def.Font
	}
	if cfg.PrimaryColor == "" {
		cfg.PrimaryColor = def.PrimaryColor
	}
	if cfg.SecondaryColor == "" {
		cfg.SecondaryColor = def.SecondaryColor
	}
	cfg.Labels = mergeLabels(cfg.Labels, def.Labels)

	r := &Renderer{cfg: cfg, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render builds the protocol and returns the .docx bytes.
func (r *Renderer) Render(ctx context.Context, md domain.Metadata, questions, decisions []string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}

	doc, err := godocx.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("%w: new document: %v", domain.ErrRenderFailed, err)
	}

	l := r.cfg.Labels
	r.run(doc.AddParagraph(""), l.Title, r.cfg.PrimaryColor, titleSize, true)
	r.run(doc.AddParagraph(""), md.ProtocolName, r.cfg.PrimaryColor, subtitleSize, false)
	doc.AddParagraph("")

	rows := []struct{ label, value string }{
		{l.Date, md.Date},
		{l.ProjectNumber, md.ProjectNumber},
		{l.ContractYear, md.ContractYear},
		{l.ProjectType, md.ProjectType},
		{l.ObjectName, md.ObjectName},
		{l.ClientName, md.ClientName},
	}
	for _, row := range rows {
		p := doc.AddParagraph("")
		r.run(p, row.label+" ", r.cfg.SecondaryColor, fontSize, true)
		r.run(p, row.value, r.cfg.SecondaryColor, fontSize, false)
	}
	doc.AddParagraph("")

	r.section(doc, l.Questions, questions)
	r.section(doc, l.Decisions, decisions)

	r.run(doc.AddParagraph(""), signatureRun+signatureGap+signatureRun, "000000", fontSize, false)
	client := l.ClientSignature
	if md.ClientName != "" {
		client += " (" + md.ClientName + ")"
	}
	r.run(doc.AddParagraph(""), l.StudioSignature+signatureGap+client, "000000", fontSize-3, false)

	out, err := r.save(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	r.logger.DebugContext(ctx, "protocol rendered", "bytes", len(out), "questions", len(questions), "decisions", len(decisions))
	return out, nil
}

// FileName derives the attachment name from the protocol name.
func (r *Renderer) FileName(md domain.Metadata) string {
	name := slug(md.ProtocolName)
	if name == "" {
		return "protocol.docx"
	}
	return "protocol_" + name + ".docx"
}

func (r *Renderer) section(doc *docx.RootDoc, title string, items []string) {
	r.run(doc.AddParagraph(""), title, r.cfg.PrimaryColor, sectionSize, true)
	if len(items) == 0 {
		r.run(doc.AddParagraph(""), r.cfg.Labels.EmptySectionMarker, "000000", fontSize, false)
	}
	for i, item := range items {
		r.run(doc.AddParagraph(""), fmt.Sprintf("%d. %s", i+1, item), "000000", fontSize, false)
	}
	doc.AddParagraph("")
}

func (r *Renderer) run(p *docx.Paragraph, text, color string, size uint64, bold bool) {
	run := p.AddText(text).Font(r.cfg.Font).Size(size).Color(color)
	if bold {
		run.Bold(true)
	}
}

// save stages the document on disk because the writer only saves to paths.
func (r *Renderer) save(doc *docx.RootDoc) ([]byte, error) {
	dir, err := os.MkdirTemp(r.tempDir, "minutes-docx-")
	if err != nil {
		return nil, fmt.Errorf("staging dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "protocol.docx")
	if err := doc.SaveTo(path); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return os.ReadFile(path)
}

var unsafeName = regexp.MustCompile(`[^\pL\pN_-]+`)

func slug(s string) string {
	s = unsafeName.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "_")
	if r := []rune(s); len(r) > 64 {
		s = string(r[:64])
	}
	return s
}

func mergeLabels(l, def Labels) Labels {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return Labels{
		Title:              pick(l.Title, def.Title),
		Date:               pick(l.Date, def.Date),
		ProjectNumber:      pick(l.ProjectNumber, def.ProjectNumber),
		ContractYear:       pick(l.ContractYear, def.ContractYear),
		ProjectType:        pick(l.ProjectType, def.ProjectType),
		ObjectName:         pick(l.ObjectName, def.ObjectName),
		ClientName:         pick(l.ClientName, def.ClientName),
		Questions:          pick(l.Questions, def.Questions),
		Decisions:          pick(l.Decisions, def.Decisions),
		StudioSignature:    pick(l.StudioSignature, def.StudioSignature),
		ClientSignature:    pick(l.ClientSignature, def.ClientSignature),
		EmptySectionMarker: pick(l.EmptySectionMarker, def.EmptySectionMarker),
	}
}
