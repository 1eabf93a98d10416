package mailx

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"reflect"
	"slices"
	"strings"
	"sync"
	texttemplate "text/template"

	"github.com/Abraxas-365/idp-mailer/pkg/asyncx"
	"github.com/Abraxas-365/idp-mailer/pkg/errx"
	"github.com/Abraxas-365/idp-mailer/pkg/fsx"
	"github.com/Abraxas-365/idp-mailer/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/idp-mailer/pkg/logx"
	"gopkg.in/yaml.v3"
)

//go:embed templates
var embeddedTemplates embed.FS

// subjectsFile maps template names to subject templates in an overlay.
const subjectsFile = "subjects.yaml"

type templatePair struct {
	subject *texttemplate.Template
	body    *htmltemplate.Template
}

// Renderer maps a known template name and a data payload to a rendered
// subject and HTML body. The template set is fixed at construction.
type Renderer struct {
	mu        sync.RWMutex
	templates map[string]templatePair
	strict    bool
	logger    *logx.Logger
}

type rendererOptions struct {
	source fsx.FileReader
	dir    string
	strict bool
	logger *logx.Logger
}

// RendererOption configures a Renderer.
type RendererOption func(*rendererOptions)

// WithTemplateSource overlays templates read from src on top of the
// embedded set.
func WithTemplateSource(src fsx.FileReader) RendererOption {
	return func(o *rendererOptions) {
		o.source = src
	}
}

// WithTemplateDir overlays templates from a local directory.
func WithTemplateDir(dir string) RendererOption {
	return func(o *rendererOptions) {
		o.dir = dir
	}
}

// WithStrict makes a reference to a field missing from the data a render
// error instead of an empty value.
func WithStrict(strict bool) RendererOption {
	return func(o *rendererOptions) {
		o.strict = strict
	}
}

// WithRendererLogger sets the logger used for overlay warnings.
func WithRendererLogger(logger *logx.Logger) RendererOption {
	return func(o *rendererOptions) {
		o.logger = logger
	}
}

// NewRenderer builds the known template set from the embedded resources,
// synthesizing defaults for missing files, then applies the optional
// overlay. Overlay problems are logged and never fail construction.
func NewRenderer(opts ...RendererOption) *Renderer {
	o := rendererOptions{logger: logx.GetDefaultLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Renderer{
		templates: make(map[string]templatePair, len(KnownTemplates)),
		strict:    o.strict,
		logger:    o.logger,
	}

	for _, name := range KnownTemplates {
		r.templates[name] = r.mustCompile(name, embeddedSubject(name), embeddedBody(name))
	}

	source := o.source
	if source == nil && o.dir != "" {
		local, err := fsxlocal.NewLocalFileSystem(o.dir)
		if err != nil {
			r.logger.WithField("dir", o.dir).WithError(err).
				Warn("custom email templates unavailable, using embedded defaults")
		} else {
			source = local
		}
	}
	if source != nil {
		r.overlay(context.Background(), source)
	}

	return r
}

// Names returns the known template names.
func (r *Renderer) Names() []string {
	return slices.Clone(KnownTemplates)
}

// Has reports whether name is a known template.
func (r *Renderer) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.templates[name]
	return ok
}

// Render executes the subject and body templates for name against data.
// Nothing is returned unless both succeed.
func (r *Renderer) Render(name string, data any) (string, string, error) {
	r.mu.RLock()
	pair, ok := r.templates[name]
	r.mu.RUnlock()

	if !ok {
		return "", "", mailxErrors.New(ErrTemplateNotFound).WithDetail("template", name)
	}

	var subject bytes.Buffer
	if err := pair.subject.Execute(&subject, data); err != nil {
		return "", "", renderFailed(name, "subject", err)
	}

	var body bytes.Buffer
	if err := pair.body.Execute(&body, data); err != nil {
		return "", "", renderFailed(name, "body", err)
	}

	return subject.String(), body.String(), nil
}

func renderFailed(name, part string, err error) *errx.Error {
	return mailxErrors.NewWithCause(ErrTemplateRender, err).
		WithDetail("template", name).
		WithDetail("part", part)
}

func (r *Renderer) compile(name, subject, body string) (templatePair, error) {
	missing := "missingkey=default"
	if r.strict {
		missing = "missingkey=error"
	}
	funcs := map[string]any{
		"field":    fieldFunc(r.strict),
		"optional": fieldFunc(false),
	}

	st, err := texttemplate.New(name + ".subject").Option(missing).Funcs(funcs).Parse(subject)
	if err != nil {
		return templatePair{}, mailxErrors.NewWithCause(ErrTemplateParse, err).
			WithDetail("template", name).WithDetail("part", "subject")
	}
	bt, err := htmltemplate.New(name).Option(missing).Funcs(funcs).Parse(body)
	if err != nil {
		return templatePair{}, mailxErrors.NewWithCause(ErrTemplateParse, err).
			WithDetail("template", name).WithDetail("part", "body")
	}
	return templatePair{subject: st, body: bt}, nil
}

func (r *Renderer) mustCompile(name, subject, body string) templatePair {
	pair, err := r.compile(name, subject, body)
	if err != nil {
		panic(err)
	}
	return pair
}

type overlayFiles struct {
	name    string
	subject string
	body    string
}

// overlay lists src once and reads only the override files it holds.
// Files that name no known template are reported and ignored.
func (r *Renderer) overlay(ctx context.Context, src fsx.FileReader) {
	infos, err := src.List(ctx, "")
	if err != nil {
		r.logger.WithError(err).Warn("unable to list custom email templates, using embedded defaults")
		return
	}

	listed := make(map[string]bool, len(infos))
	for _, info := range infos {
		if info.IsDir {
			continue
		}
		listed[info.Name] = true
		if name, ok := overlayTemplateName(info.Name); ok && !slices.Contains(KnownTemplates, name) {
			r.logger.WithField("file", info.Name).Warn("custom email template file names an unknown template")
		}
	}

	var names []string
	for _, name := range KnownTemplates {
		if listed[name+".html"] || listed[name+".subject.txt"] {
			names = append(names, name)
		}
	}

	results := asyncx.Settle(ctx, 0, names, func(ctx context.Context, name string) (overlayFiles, error) {
		files := overlayFiles{name: name}
		var (
			body, subject string
			err           error
		)
		if listed[name+".html"] {
			if body, err = readOptional(ctx, src, name+".html"); err != nil {
				return files, err
			}
		}
		if listed[name+".subject.txt"] {
			if subject, err = readOptional(ctx, src, name+".subject.txt"); err != nil {
				return files, err
			}
		}
		files.body, files.subject = body, strings.TrimSpace(subject)
		return files, nil
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, res := range results {
		name := names[i]
		if !res.OK() {
			r.warnOverlay(name, res.Err)
			continue
		}
		if res.Value.body == "" && res.Value.subject == "" {
			continue
		}

		current := r.templates[name]
		pair, err := r.compileOverlay(name, current, res.Value)
		if err != nil {
			r.warnOverlay(name, err)
			continue
		}
		r.templates[name] = pair
	}

	if listed[subjectsFile] {
		r.overlaySubjects(ctx, src)
	}
}

// overlayTemplateName extracts the template name from an override file name.
func overlayTemplateName(file string) (string, bool) {
	if name, ok := strings.CutSuffix(file, ".subject.txt"); ok {
		return name, true
	}
	return strings.CutSuffix(file, ".html")
}

func (r *Renderer) compileOverlay(name string, current templatePair, files overlayFiles) (templatePair, error) {
	pair := current
	if files.subject != "" {
		p, err := r.compile(name, files.subject, "")
		if err != nil {
			return current, err
		}
		pair.subject = p.subject
	}
	if files.body != "" {
		p, err := r.compile(name, "", files.body)
		if err != nil {
			return current, err
		}
		pair.body = p.body
	}
	return pair, nil
}

// overlaySubjects applies subjects.yaml. Callers hold r.mu.
func (r *Renderer) overlaySubjects(ctx context.Context, src fsx.FileReader) {
	raw, err := readOptional(ctx, src, subjectsFile)
	if err != nil {
		r.warnOverlay(subjectsFile, err)
		return
	}
	if raw == "" {
		return
	}

	var subjects map[string]string
	if err := yaml.Unmarshal([]byte(raw), &subjects); err != nil {
		r.warnOverlay(subjectsFile, err)
		return
	}

	for name, subject := range subjects {
		current, ok := r.templates[name]
		if !ok {
			r.logger.WithField("template", name).Warn("subjects.yaml names an unknown email template")
			continue
		}
		pair, err := r.compileOverlay(name, current, overlayFiles{subject: strings.TrimSpace(subject)})
		if err != nil {
			r.warnOverlay(name, err)
			continue
		}
		r.templates[name] = pair
	}
}

func (r *Renderer) warnOverlay(name string, err error) {
	r.logger.WithField("template", name).WithError(err).
		Warn("failed to load custom email template, keeping embedded default")
}

func readOptional(ctx context.Context, src fsx.FileReader, path string) (string, error) {
	data, err := src.ReadFile(ctx, path)
	if err != nil {
		if errx.HasCode(err, fsx.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

func embeddedBody(name string) string {
	data, err := fs.ReadFile(embeddedTemplates, "templates/"+name+".html")
	if err != nil {
		return fallbackBody
	}
	return string(data)
}

func embeddedSubject(name string) string {
	data, err := fs.ReadFile(embeddedTemplates, "templates/"+name+".subject.txt")
	if err != nil {
		return DefaultSubject(name)
	}
	return string(bytes.TrimSpace(data))
}

// fieldFunc returns a template function that looks a name up in a map or
// struct and yields "" when it is absent. With strict set an absent field
// is an error. Templates use "field" for required values and "optional"
// for values that may be left out in any mode.
func fieldFunc(strict bool) func(data any, name string) (any, error) {
	return func(data any, name string) (any, error) {
		v := reflect.ValueOf(data)
		for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
			if v.IsNil() {
				break
			}
			v = v.Elem()
		}

		if v.IsValid() {
			switch v.Kind() {
			case reflect.Map:
				if v.Type().Key().Kind() == reflect.String {
					if mv := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key())); mv.IsValid() {
						return mv.Interface(), nil
					}
				}
			case reflect.Struct:
				if f := v.FieldByName(name); f.IsValid() && f.CanInterface() {
					return f.Interface(), nil
				}
			}
		}

		if strict {
			return nil, fmt.Errorf("field %q is missing from template data", name)
		}
		return "", nil
	}
}
