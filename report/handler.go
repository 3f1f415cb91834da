package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// XSD type hints carried on emitted attributes.
const (
	XSDString   = "xs:string"
	XSDLong     = "xs:long"
	XSDInt      = "xs:int"
	XSDDateTime = "xs:dateTime"
)

// Attr is one attribute on an emitted element, with its XSD type hint.
type Attr struct {
	Name  string
	Type  string
	Value string
}

// ContentHandler receives the report document as a stream of element and
// character events, in document order. Implementations are not safe for
// concurrent use; the reportlet serializes all emission.
type ContentHandler interface {
	StartElement(name string, attrs []Attr) error
	EndElement(name string) error
	Characters(chars string) error
}

// XMLWriter streams ContentHandler events to a writer as XML, without
// buffering the document. Elements with no content collapse to the
// self-closing form.
type XMLWriter struct {
	w       io.Writer
	pending string
	open    []string
}

func NewXMLWriter(w io.Writer) *XMLWriter {
	return &XMLWriter{w: w}
}

// StartDocument writes the XML declaration.
func (x *XMLWriter) StartDocument() error {
	_, err := io.WriteString(x.w, xml.Header)
	return err
}

func (x *XMLWriter) StartElement(name string, attrs []Attr) error {
	if err := x.closePending(); err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(name)
	for _, attr := range attrs {
		sb.WriteString(" ")
		sb.WriteString(attr.Name)
		sb.WriteString(`="`)
		sb.WriteString(escape(attr.Value))
		sb.WriteString(`"`)
	}

	if _, err := io.WriteString(x.w, sb.String()); err != nil {
		return err
	}
	x.pending = name
	x.open = append(x.open, name)
	return nil
}

func (x *XMLWriter) EndElement(name string) error {
	if len(x.open) == 0 || x.open[len(x.open)-1] != name {
		return fmt.Errorf("unbalanced end element %q", name)
	}
	x.open = x.open[:len(x.open)-1]

	if x.pending == name {
		x.pending = ""
		_, err := io.WriteString(x.w, "/>")
		return err
	}
	_, err := io.WriteString(x.w, "</"+name+">")
	return err
}

func (x *XMLWriter) Characters(chars string) error {
	if err := x.closePending(); err != nil {
		return err
	}
	_, err := io.WriteString(x.w, escape(chars))
	return err
}

func (x *XMLWriter) closePending() error {
	if x.pending == "" {
		return nil
	}
	x.pending = ""
	_, err := io.WriteString(x.w, ">")
	return err
}

func escape(s string) string {
	var sb strings.Builder
	if err := xml.EscapeText(&sb, []byte(s)); err != nil {
		return s
	}
	return sb.String()
}
