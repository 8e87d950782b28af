package plugin

import (
	"fmt"
	"regexp"
	"strings"
)

// Binding pairs a specifier pattern with the handler it selects.
type Binding struct {
	Name    string
	Pattern *regexp.Regexp
	Handler Handler
}

// Registry is an ordered list of bindings; the first match wins.
type Registry struct {
	bindings []Binding
}

// NewRegistry returns a registry holding bindings in order.
func NewRegistry(bindings ...Binding) *Registry {
	return &Registry{bindings: append([]Binding(nil), bindings...)}
}

// Add appends a binding.
func (r *Registry) Add(b Binding) {
	r.bindings = append(r.bindings, b)
}

// Match returns the first binding whose pattern matches modulePath.
func (r *Registry) Match(modulePath string) (Binding, bool) {
	for _, b := range r.bindings {
		if b.Pattern.MatchString(modulePath) {
			return b, true
		}
	}
	return Binding{}, false
}

// Names returns the binding names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.bindings))
	for i, b := range r.bindings {
		names[i] = b.Name
	}
	return names
}

// Len returns the number of bindings.
func (r *Registry) Len() int {
	return len(r.bindings)
}

var imageExtensions = []string{
	"apng", "bmp", "gif", "ico", "cur", "jpg", "jpeg", "jfif",
	"pjpeg", "pjp", "png", "svg", "tif", "tiff", "webp",
}

var audioExtensions = []string{
	"3gp", "flac", "mpg", "mpeg", "mp3", "mp4", "m4a", "oga", "ogg", "wav", "webm",
}

func extensionPattern(exts ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\.(?:` + strings.Join(exts, "|") + `)$`)
}

// Builtins returns the built-in bindings in their matching order.
func Builtins() []Binding {
	return []Binding{
		{Name: "css", Pattern: extensionPattern("css"), Handler: &Asset{Name: "css", Body: BodyText, Inject: InjectFetchStyle}},
		{Name: "html", Pattern: extensionPattern("html", "htm"), Handler: &Asset{Name: "html", Body: BodyText}},
		{Name: "txt", Pattern: extensionPattern("txt"), Handler: &Asset{Name: "txt", Body: BodyText}},
		{Name: "json", Pattern: extensionPattern("json"), Handler: &Asset{Name: "json", Body: BodyJSON}},
		{Name: "img", Pattern: extensionPattern(imageExtensions...), Handler: &Asset{Name: "img", Body: BodyObjectURL}},
		{Name: "audio", Pattern: extensionPattern(audioExtensions...), Handler: &Asset{Name: "audio", Body: BodyAudio}},
		{Name: "formData", Pattern: extensionPattern("formData"), Handler: &Asset{Name: "formData", Body: BodyFormData}},
		{Name: "blob", Pattern: extensionPattern("blob"), Handler: &Asset{Name: "blob", Body: BodyBlob}},
		{Name: "buff", Pattern: extensionPattern("buff"), Handler: &Asset{Name: "buff", Body: BodyArrayBuffer}},
		{Name: "buf", Pattern: extensionPattern("buf"), Handler: &Asset{Name: "buf", Body: BodyUint8}},
		{Name: "b64", Pattern: extensionPattern("b64"), Handler: &Asset{Name: "b64", Body: BodyBase64}},
	}
}

// DefaultRegistry returns a registry with every built-in binding.
func DefaultRegistry() *Registry {
	return NewRegistry(Builtins()...)
}

var aliases = map[string]string{
	"arraybuffer": "buff",
	"style":       "css",
	"htm":         "html",
	"image":       "img",
	"text":        "txt",
}

// Lookup returns the built-in binding with the given name or alias.
func Lookup(name string) (Binding, bool) {
	key := strings.ToLower(name)
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	for _, b := range Builtins() {
		if strings.ToLower(b.Name) == key {
			return b, true
		}
	}
	return Binding{}, false
}

// Spec is the configuration form of a binding: a built-in by name, or a
// custom pattern that reuses a built-in handler ("use") or selects an
// action directly ("action": "module").
type Spec struct {
	Name   string `mapstructure:"name" json:"name,omitempty" yaml:"name,omitempty"`
	Test   string `mapstructure:"test" json:"test,omitempty" yaml:"test,omitempty"`
	Use    string `mapstructure:"use" json:"use,omitempty" yaml:"use,omitempty"`
	Action string `mapstructure:"action" json:"action,omitempty" yaml:"action,omitempty"`
	Body   string `mapstructure:"body" json:"body,omitempty" yaml:"body,omitempty"`
}

// FromSpecs builds a registry from configuration. No specs means every
// built-in.
func FromSpecs(specs []Spec) (*Registry, error) {
	if len(specs) == 0 {
		return DefaultRegistry(), nil
	}

	reg := NewRegistry()
	for i, s := range specs {
		b, err := s.binding()
		if err != nil {
			return nil, fmt.Errorf("plugin %d: %w", i, err)
		}
		reg.Add(b)
	}
	return reg, nil
}

func (s Spec) binding() (Binding, error) {
	if s.Test == "" {
		b, ok := Lookup(s.Name)
		if !ok {
			return Binding{}, fmt.Errorf("unknown built-in plugin %q", s.Name)
		}
		return b, nil
	}

	pattern, err := regexp.Compile(s.Test)
	if err != nil {
		return Binding{}, fmt.Errorf("invalid test pattern %q: %w", s.Test, err)
	}
	name := s.Name
	if name == "" {
		name = s.Test
	}

	switch {
	case s.Action != "":
		action, err := ParseAction(s.Action)
		if err != nil {
			return Binding{}, err
		}
		switch action {
		case ActionModule:
			return Binding{Name: name, Pattern: pattern, Handler: Module{}}, nil
		case ActionInject:
			return Binding{Name: name, Pattern: pattern, Handler: &Asset{Name: name, Body: BodyText, Inject: InjectLinkStyle}}, nil
		}
		body := BodyText
		if s.Body != "" {
			b, ok := ParseBodyType(s.Body)
			if !ok {
				return Binding{}, fmt.Errorf("%w: %s", ErrUnsupportedBody, s.Body)
			}
			body = b
		}
		return Binding{Name: name, Pattern: pattern, Handler: &Asset{Name: name, Body: body}}, nil

	case s.Use != "":
		base, ok := Lookup(s.Use)
		if !ok {
			return Binding{}, fmt.Errorf("unknown built-in plugin %q", s.Use)
		}
		return Binding{Name: name, Pattern: pattern, Handler: base.Handler}, nil

	default:
		return Binding{}, fmt.Errorf("plugin with test %q needs \"use\" or \"action\"", s.Test)
	}
}
