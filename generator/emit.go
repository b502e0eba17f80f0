package generator

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"unicode"

	"golang.org/x/tools/imports"
)

var injectorTemplate = template.Must(template.New("injector").Parse(`// Code generated by injectgen. DO NOT EDIT.

package {{.Package}}

import (
{{- range .Imports}}
	{{if .Alias}}{{.Name}} {{end}}"{{.Path}}"
{{- end}}
)
{{- if .Injector}}

type {{.Type}}GeneratedInjector struct{}
{{- end}}

func init() {
{{- with .Declaration}}
	di.Declare[{{$.Type}}](
{{- range .Constructors}}
		di.{{if .Marked}}WithInjectConstructor{{else}}WithConstructor{{end}}({{.Name}}{{range .Params}}, {{printf "%q" .}}{{end}}),
{{- end}}
{{- range .Methods}}
		di.WithMethod({{printf "%q" .Name}}{{range .Params}}, {{printf "%q" .}}{{end}}),
{{- end}}
	)
{{- end}}
{{- if .Injector}}
	di.RegisterGenerated({{printf "%q" .Registration}}, func() di.Injector {
		return {{.Type}}GeneratedInjector{}
	})
{{- end}}
}
{{- if .Injector}}

func ({{.Type}}GeneratedInjector) CreateInstance(resolver di.Resolver, params []di.Parameter) (any, error) {
{{- if .HostManaged}}
	return nil, di.NewUnsupportedConstructionError(di.KeyOf[{{.Type}}]())
{{- else if not .Constructor}}
	return &{{.Type}}{}, nil
{{- else}}
{{- range .Constructor.Params}}
	{{.Var}}, err := di.ResolveOrParameter[{{.TypeExpr}}](resolver, {{printf "%q" .Name}}, params)
	if err != nil {
		return nil, err
	}
{{- end}}
{{- with .Constructor}}
{{- if .ReturnsError}}
	instance, err := {{.Name}}({{range $i, $p := .Params}}{{if $i}}, {{end}}{{$p.Var}}{{end}})
	if err != nil {
		return nil, err
	}
{{- else}}
	instance := {{.Name}}({{range $i, $p := .Params}}{{if $i}}, {{end}}{{$p.Var}}{{end}})
{{- end}}
{{- if .ReturnsValue}}
	return &instance, nil
{{- else}}
	if instance == nil {
		return nil, di.NewConstructionError(di.KeyOf[{{$.Type}}](), {{printf "%q" .Name}}, di.ReasonNilInstance)
	}
	return instance, nil
{{- end}}
{{- end}}
{{- end}}
}

func ({{.Type}}GeneratedInjector) Inject(instance any, resolver di.Resolver, params []di.Parameter) error {
{{- if not .HasPoints}}
	return nil
{{- else}}
	target, err := di.InstanceOf[{{.Type}}](instance)
	if err != nil {
		return err
	}
{{- range .Fields}}

	{{.Var}}, err := di.Resolve[{{.TypeExpr}}](resolver)
	if err != nil {
		return err
	}
	target.{{.Name}} = {{.Var}}
{{- end}}
{{- range .Properties}}

	{{.Var}}, err := di.Resolve[{{.TypeExpr}}](resolver)
	if err != nil {
		return err
	}
{{- if .ReturnsError}}
	if err := target.{{.Name}}({{.Var}}); err != nil {
		return err
	}
{{- else}}
	target.{{.Name}}({{.Var}})
{{- end}}
{{- end}}
{{- range .Methods}}
{{range .Params}}
	{{.Var}}, err := di.ResolveOrParameter[{{.TypeExpr}}](resolver, {{printf "%q" .Name}}, params)
	if err != nil {
		return err
	}
{{- end}}
{{- if .ReturnsError}}
	if err := target.{{.Name}}({{range $i, $p := .Params}}{{if $i}}, {{end}}{{$p.Var}}{{end}}); err != nil {
		return err
	}
{{- else}}
	target.{{.Name}}({{range $i, $p := .Params}}{{if $i}}, {{end}}{{$p.Var}}{{end}})
{{- end}}
{{- end}}
	return nil
{{- end}}
}
{{- end}}
`))

// render 执行模板并按 goimports 的方式格式化（只格式化，不增删导入）
func render(model *injectorModel, filename string) ([]byte, error) {
	var buf bytes.Buffer
	if err := injectorTemplate.Execute(&buf, model); err != nil {
		return nil, fmt.Errorf("render %s: %w", model.Type, err)
	}

	out, err := imports.Process(filename, buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", model.Type, err)
	}
	return out, nil
}

// sortedImports 生成文件的导入列表，di 总是存在
func sortedImports(set importSet) []importSpec {
	set["di"] = diImportPath
	specs := make([]importSpec, 0, len(set))
	for name, p := range set {
		specs = append(specs, importSpec{Name: name, Path: p, Alias: name != defaultImportName(p)})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Path < specs[j].Path })
	return specs
}

// OutputFileName 生成文件名：HTTPServer -> http_server_injector_gen.go
func OutputFileName(typeName, suffix string) string {
	return snakeCase(typeName) + suffix
}

func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
