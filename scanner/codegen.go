/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package scanner wires scanner/parser and scanner/sig into the three code
// generation artifacts the compiler CLI produces: the full message tables
// ("code"), and the client/server facing constant declarations
// ("client-header"/"server-header").
package scanner

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/nabbar/wlserver/scanner/model"
	"github.com/nabbar/wlserver/scanner/parser"
	"github.com/nabbar/wlserver/scanner/sig"
)

// Artifact names the CLI's single positional argument.
type Artifact string

const (
	ArtifactCode         Artifact = "code"
	ArtifactClientHeader Artifact = "client-header"
	ArtifactServerHeader Artifact = "server-header"
)

// Compile reads a description document from r, validates and enriches it,
// then writes the requested artifact to w. Warnings from the parser are
// returned alongside a nil error; a parse failure is returned as-is (already
// a *parser.Error carrying a source line).
func Compile(artifact Artifact, r io.Reader, w io.Writer) ([]parser.Warning, error) {
	p, warnings, err := parser.Parse(r)
	if err != nil {
		return warnings, err
	}

	sig.EmitProtocol(p)

	var out string
	switch artifact {
	case ArtifactCode:
		out, err = renderCode(p)
	case ArtifactClientHeader:
		out, err = renderHeader(p, model.KindEvent)
	case ArtifactServerHeader:
		out, err = renderHeader(p, model.KindRequest)
	default:
		return warnings, fmt.Errorf("unknown artifact %q", artifact)
	}
	if err != nil {
		return warnings, err
	}

	_, err = io.WriteString(w, out)
	return warnings, err
}

func goPackageName(protocolName string) string {
	n := strings.ReplaceAll(protocolName, "-", "_")
	if n == "" {
		return "protocol"
	}
	return n
}

const codeTmpl = `// Code generated from protocol description {{.Name}}; DO NOT EDIT.

package {{.Package}}

// Peer interfaces referenced by this protocol's messages.
var PeerInterfaces = []string{
{{- range .Peers }}
	"{{ . }}",
{{- end }}
}

{{range $i := .Interfaces}}
// {{$i.GoName}}Version is the {{$i.Name}} interface version.
const {{$i.GoName}}Version = {{$i.Version}}

var {{$i.GoName}}Types = []string{
{{- range $i.Types }}
	{{ if eq . "" }}""{{ else }}"{{ . }}"{{ end }},
{{- end }}
}

{{range $i.Requests}}
// {{$i.Prefix}}{{.GoName}} is request opcode {{.Opcode}} of {{$i.Name}}, since version {{.Since}}.
// signature: "{{.Signature}}"
const {{$i.Prefix}}{{.GoName}} = {{.Opcode}}
{{end}}
{{range $i.Events}}
// {{$i.Prefix}}{{.GoName}} is event opcode {{.Opcode}} of {{$i.Name}}, since version {{.Since}}.
// signature: "{{.Signature}}"
const {{$i.Prefix}}{{.GoName}} = {{.Opcode}}
{{end}}
{{end}}
`

const headerTmpl = `// Code generated from protocol description {{.Name}}; DO NOT EDIT.
// {{.Role}}-facing declarations: opcodes and signatures for the messages
// this side sends.

package {{.Package}}

{{range $i := .Interfaces}}
{{range $i.Sent}}
// {{$i.Prefix}}{{.GoName}} opcode {{.Opcode}}, signature "{{.Signature}}", since {{.Since}}.
const {{$i.Prefix}}{{.GoName}} = {{.Opcode}}
{{end}}
{{end}}
`

type tmplMessage struct {
	GoName     string
	Opcode     int
	Since      int
	Signature  string
	Destructor bool
}

type tmplInterface struct {
	Name     string
	GoName   string
	Version  int
	Types    []string
	Requests []tmplMessage
	Events   []tmplMessage
	Sent     []tmplMessage
	Prefix   string
}

func goName(ifaceName, msgName string) string {
	return exportCase(ifaceName) + exportCase(msgName)
}

func exportCase(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

func buildInterfaces(p *model.Protocol) []tmplInterface {
	out := make([]tmplInterface, 0, len(p.Interfaces))
	for _, i := range p.Interfaces {
		ti := tmplInterface{Name: i.Name, GoName: exportCase(i.Name), Version: i.Version, Types: i.Types, Prefix: exportCase(i.Name) + "_"}
		for _, r := range i.Requests {
			ti.Requests = append(ti.Requests, tmplMessage{GoName: exportCase(r.Name), Opcode: r.Opcode, Since: r.Since, Signature: r.Signature, Destructor: r.Destructor})
		}
		for _, e := range i.Events {
			ti.Events = append(ti.Events, tmplMessage{GoName: exportCase(e.Name), Opcode: e.Opcode, Since: e.Since, Signature: e.Signature, Destructor: e.Destructor})
		}
		out = append(out, ti)
	}
	return out
}

func renderCode(p *model.Protocol) (string, error) {
	data := struct {
		Name       string
		Package    string
		Peers      []string
		Interfaces []tmplInterface
	}{
		Name:       p.Name,
		Package:    goPackageName(p.Name),
		Peers:      sig.PeerInterfaces(p),
		Interfaces: buildInterfaces(p),
	}

	t, err := template.New("code").Parse(codeTmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err = t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderHeader(p *model.Protocol, sentKind model.MessageKind) (string, error) {
	role := "server"
	if sentKind == model.KindEvent {
		role = "client"
	}

	ifaces := buildInterfaces(p)
	for k, i := range ifaces {
		if sentKind == model.KindEvent {
			ifaces[k].Sent = i.Events
		} else {
			ifaces[k].Sent = i.Requests
		}
	}

	data := struct {
		Name       string
		Package    string
		Role       string
		Prefix     string
		Interfaces []tmplInterface
	}{
		Name:       p.Name,
		Package:    goPackageName(p.Name),
		Role:       role,
		Interfaces: ifaces,
	}

	t, err := template.New("header").Parse(headerTmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err = t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
