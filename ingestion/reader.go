package ingestion

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/tmc/langchaingo/documentloaders"
	"golang.org/x/text/encoding/charmap"
)

// Content is the text extracted from one file.
type Content struct {
	// Pages holds the text of each page in order. Formats without pages
	// produce a single element.
	Pages []string

	// Warnings describes lossy or unsupported extraction.
	Warnings []string
}

// Reader extracts text from the raw bytes of a file.
type Reader interface {
	Read(ctx context.Context, data []byte) (*Content, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(ctx context.Context, data []byte) (*Content, error)

func (f ReaderFunc) Read(ctx context.Context, data []byte) (*Content, error) {
	return f(ctx, data)
}

// DefaultReaders returns the readers for the supported extensions, keyed by
// lower-case extension including the dot.
func DefaultReaders() map[string]Reader {
	return map[string]Reader{
		".pdf":  ReaderFunc(ReadPDF),
		".txt":  ReaderFunc(ReadText),
		".docx": ReaderFunc(ReadDOCX),
		".doc":  ReaderFunc(readLegacyDOC),
	}
}

// ReadText decodes plain text. Bytes that are not valid UTF-8 are decoded
// as ISO-8859-1.
func ReadText(ctx context.Context, data []byte) (*Content, error) {
	content := &Content{}
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding latin-1: %w", ErrExtractionFailed, err)
		}
		data = decoded
		content.Warnings = append(content.Warnings, "not valid UTF-8, decoded as ISO-8859-1")
	}

	docs, err := documentloaders.NewText(bytes.NewReader(data)).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	for _, d := range docs {
		content.Pages = append(content.Pages, d.PageContent)
	}
	return content, nil
}

// ReadPDF extracts the plain text of each page. Extraction stops at the
// first page that fails and the pages read so far are kept.
func ReadPDF(ctx context.Context, data []byte) (*Content, error) {
	r, err := openPDF(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	content := &Content{}
	numPages := r.NumPage()
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := readPage(r, i, fonts)
		if err != nil {
			content.Warnings = append(content.Warnings,
				fmt.Sprintf("extraction stopped at page %d of %d: %v", i, numPages, err))
			break
		}
		content.Pages = append(content.Pages, text)
	}
	return content, nil
}

func openPDF(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// readPage reads one page. The pdf package panics on some malformed
// content streams, so panics are turned into errors.
func readPage(r *pdf.Reader, n int, fonts map[string]*pdf.Font) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed page: %v", rec)
		}
	}()

	p := r.Page(n)
	if p.V.IsNull() {
		return "", nil
	}
	for _, name := range p.Fonts() {
		if _, ok := fonts[name]; !ok {
			f := p.Font(name)
			fonts[name] = &f
		}
	}
	return p.GetPlainText(fonts)
}

const wordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// ReadDOCX extracts paragraph text from word/document.xml.
func ReadDOCX(ctx context.Context, data []byte) (*Content, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
		}
		defer rc.Close()

		text, err := documentXMLText(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
		}
		return &Content{Pages: []string{text}}, nil
	}
	return nil, fmt.Errorf("%w: word/document.xml not found", ErrExtractionFailed)
}

func documentXMLText(ctx context.Context, r io.Reader) (string, error) {
	var sb strings.Builder
	dec := xml.NewDecoder(r)
	inText := false
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tok, err := dec.Token()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNamespace {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != wordNamespace {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
}

// readLegacyDOC reads a binary .doc as plain text. Word 97 files are not
// parsed; the result is whatever readable text the bytes contain.
func readLegacyDOC(ctx context.Context, data []byte) (*Content, error) {
	content, err := ReadText(ctx, data)
	if err != nil {
		return nil, err
	}
	content.Warnings = append(content.Warnings, "legacy .doc format is not parsed, read as plain text")
	return content, nil
}
