// Package cfdi reads CFDI 4.0 invoice documents and flattens them into
// domain.InvoiceRecord values.
package cfdi

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/cfdi-reporter/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html/charset"
)

// Namespace is the CFDI version 4 namespace. Elements bound to any other
// namespace (CFDI 3.3 included) are not read.
const Namespace = "http://www.sat.gob.mx/cfd/4"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var (
	// ErrEmptyDocument is returned for input that contains no root element.
	ErrEmptyDocument = errors.New("document is empty")
	// ErrExtraContent is returned when something follows the root element.
	ErrExtraContent = errors.New("extra content at the end of the document")

	ErrUnboundPrefix        = errors.New("unbound namespace prefix")
	ErrDuplicateAttribute   = errors.New("duplicate attribute")
	ErrMisplacedDeclaration = errors.New("XML declaration allowed only at the start of the document")
)

// ParseError reports a document that could not be read. The document is left
// out of the batch; its siblings are unaffected.
type ParseError struct {
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Name, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// fields holds the attributes of the v4 elements a record is built from, in
// document order. Comprobante elements may sit at any depth.
type fields struct {
	comprobantes [][]xml.Attr
	emisores     [][]xml.Attr
	receptores   [][]xml.Attr
	impuestos    [][]xml.Attr
	concepts     []string
}

// Extract parses one document and returns its record. Missing elements and
// attributes fall back to "" or 0; only malformed XML or a non-numeric amount
// fails, always as a *ParseError.
//
// Each attribute is taken from the first element that carries it, across all
// Comprobante elements of the document. Concepts are collected from all of
// them.
func Extract(name string, data []byte) (domain.InvoiceRecord, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if err := checkWellFormed(data); err != nil {
		return domain.InvoiceRecord{}, &ParseError{Name: name, Err: err}
	}
	f, err := collectFields(data)
	if err != nil {
		return domain.InvoiceRecord{}, &ParseError{Name: name, Err: err}
	}

	record := domain.InvoiceRecord{
		Name:        name,
		IssuerTaxID: firstAttr(f.emisores, "Rfc"),
		IssuerName:  firstAttr(f.emisores, "Nombre"),
		UsageCode:   firstAttr(f.receptores, "UsoCFDI"),
		IssueDate:   firstAttr(f.comprobantes, "Fecha"),
		Concepts:    f.concepts,
	}

	if record.Total, err = firstAmount(f.comprobantes, "Total"); err != nil {
		return domain.InvoiceRecord{}, &ParseError{Name: name, Err: err}
	}
	if record.TaxesTransferred, err = firstAmount(f.impuestos, "TotalImpuestosTrasladados"); err != nil {
		return domain.InvoiceRecord{}, &ParseError{Name: name, Err: err}
	}
	if record.TaxesWithheld, err = firstAmount(f.impuestos, "TotalImpuestosRetenidos"); err != nil {
		return domain.InvoiceRecord{}, &ParseError{Name: name, Err: err}
	}

	return record, nil
}

func newDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

// checkWellFormed covers what encoding/xml lets through: prefixes that no
// xmlns declaration binds, and an XML declaration anywhere but the very
// start.
func checkWellFormed(data []byte) error {
	dec := newDecoder(data)
	scopes := []map[string]bool{{"xml": true}}

	for i := 0; ; i++ {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.ProcInst:
			if strings.EqualFold(t.Target, "xml") && i != 0 {
				return ErrMisplacedDeclaration
			}
		case xml.StartElement:
			scope := make(map[string]bool, len(scopes[len(scopes)-1]))
			for p := range scopes[len(scopes)-1] {
				scope[p] = true
			}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" {
					scope[a.Name.Local] = true
				}
			}
			if p := t.Name.Space; p != "" && !scope[p] {
				return fmt.Errorf("element %s:%s: %w %q", p, t.Name.Local, ErrUnboundPrefix, p)
			}
			for _, a := range t.Attr {
				if p := a.Name.Space; p != "" && p != "xmlns" && !scope[p] {
					return fmt.Errorf("attribute %s:%s: %w %q", p, a.Name.Local, ErrUnboundPrefix, p)
				}
			}
			scopes = append(scopes, scope)
		case xml.EndElement:
			if len(scopes) > 1 {
				scopes = scopes[:len(scopes)-1]
			}
		}
	}
}

// collectFields walks the document once, tracking the element path, and
// picks up the CFDI elements by their position under a Comprobante.
func collectFields(data []byte) (*fields, error) {
	dec := newDecoder(data)

	var (
		f          = &fields{concepts: []string{}}
		path       []xml.Name
		rootClosed bool
		sawRoot    bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if rootClosed {
				return nil, ErrExtraContent
			}
			sawRoot = true
			if err := checkDuplicateAttrs(t); err != nil {
				return nil, err
			}

			attrs := xml.CopyToken(t).(xml.StartElement).Attr
			switch {
			case isV4(t.Name, "Comprobante"):
				f.comprobantes = append(f.comprobantes, attrs)
			case parentIs(path, 1, "Comprobante") && isV4(t.Name, "Emisor"):
				f.emisores = append(f.emisores, attrs)
			case parentIs(path, 1, "Comprobante") && isV4(t.Name, "Receptor"):
				f.receptores = append(f.receptores, attrs)
			case parentIs(path, 1, "Comprobante") && isV4(t.Name, "Impuestos"):
				f.impuestos = append(f.impuestos, attrs)
			case parentIs(path, 2, "Comprobante") && parentIs(path, 1, "Conceptos") && isV4(t.Name, "Concepto"):
				if desc, ok := attr(attrs, "Descripcion"); ok {
					f.concepts = append(f.concepts, desc)
				}
			}
			path = append(path, t.Name)
		case xml.EndElement:
			path = path[:len(path)-1]
			if len(path) == 0 {
				rootClosed = true
			}
		case xml.CharData:
			if len(path) == 0 && len(bytes.TrimSpace(t)) > 0 {
				if sawRoot {
					return nil, ErrExtraContent
				}
				return nil, errors.New("text outside the root element")
			}
		}
	}

	if !sawRoot {
		return nil, ErrEmptyDocument
	}
	return f, nil
}

// checkDuplicateAttrs compares expanded names, so two prefixes bound to the
// same namespace still collide.
func checkDuplicateAttrs(t xml.StartElement) error {
	seen := make(map[xml.Name]bool, len(t.Attr))
	for _, a := range t.Attr {
		if seen[a.Name] {
			return fmt.Errorf("element %s: %w %q", t.Name.Local, ErrDuplicateAttribute, a.Name.Local)
		}
		seen[a.Name] = true
	}
	return nil
}

func isV4(n xml.Name, local string) bool {
	return n.Space == Namespace && n.Local == local
}

// parentIs reports whether the ancestor up levels above the current element
// is the v4 element local.
func parentIs(path []xml.Name, up int, local string) bool {
	i := len(path) - up
	return i >= 0 && isV4(path[i], local)
}

// attr looks up an unqualified attribute by local name.
func attr(attrs []xml.Attr, local string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// firstAttr returns the attribute from the first element that carries it.
func firstAttr(elems [][]xml.Attr, local string) string {
	for _, attrs := range elems {
		if v, ok := attr(attrs, local); ok {
			return v
		}
	}
	return ""
}

func firstAmount(elems [][]xml.Attr, local string) (float64, error) {
	for _, attrs := range elems {
		if raw, ok := attr(attrs, local); ok {
			return parseAmount(local, raw)
		}
	}
	return 0, nil
}

// parseAmount accepts plain decimal numbers only; NaN, Inf and hex floats are
// rejected even though strconv would take them.
func parseAmount(field, raw string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("attribute %s: invalid amount %q: %w", field, raw, err)
	}
	f, _ := d.Float64()
	return f, nil
}
