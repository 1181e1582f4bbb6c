package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"code.sajari.com/docconv"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	docxMainPart        = "word/document.xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// ErrMissingDocumentPart is returned for a docx archive without a main document part.
var ErrMissingDocumentPart = errors.New("docx has no main document part")

// ExtractDocx returns the body text of a docx document, one paragraph per
// "\n\n"-separated block. Headers, footers and notes are not read.
func ExtractDocx(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("zip.NewReader: %w", err)
	}

	part, err := findDocxMainPart(zr)
	if err != nil {
		return "", err
	}
	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", part.Name, err)
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(rc)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", part.Name, err)
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

// findDocxMainPart resolves the main part from [Content_Types].xml and falls
// back to the conventional word/document.xml.
func findDocxMainPart(zr *zip.Reader) (*zip.File, error) {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	name := docxMainPart
	if ct, ok := files["[Content_Types].xml"]; ok {
		override, err := docxMainOverride(ct)
		if err != nil {
			return nil, err
		}
		if override != "" {
			name = strings.TrimPrefix(override, "/")
		}
	}

	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingDocumentPart, name)
	}
	return f, nil
}

func docxMainOverride(ct *zip.File) (string, error) {
	rc, err := ct.Open()
	if err != nil {
		return "", fmt.Errorf("open [Content_Types].xml: %w", err)
	}
	defer rc.Close()

	var types struct {
		Overrides []struct {
			PartName    string `xml:"PartName,attr"`
			ContentType string `xml:"ContentType,attr"`
		} `xml:"Override"`
	}
	if err := xml.NewDecoder(rc).Decode(&types); err != nil {
		return "", fmt.Errorf("decode [Content_Types].xml: %w", err)
	}
	for _, o := range types.Overrides {
		if o.ContentType == docxMainContentType {
			return o.PartName, nil
		}
	}
	return "", nil
}

// docxParagraphs returns the text of every w:p in document order. A paragraph
// nested in another (text boxes) is folded into its parent.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var paragraphs []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "p" {
			continue
		}

		var p struct {
			Inner []byte `xml:",innerxml"`
		}
		if err := dec.DecodeElement(&p, &start); err != nil {
			return nil, err
		}
		text, err := docconv.XMLToText(bytes.NewReader(p.Inner), []string{"br", "tab"}, []string{"instrText", "script", "delText"}, false)
		if err != nil {
			return nil, fmt.Errorf("docconv.XMLToText: %w", err)
		}
		paragraphs = append(paragraphs, text)
	}
	return paragraphs, nil
}

// PageText extracts the text of page pageNr of a validated PDF context.
type PageText func(ctx *model.Context, pageNr int) (string, error)

var popplerAvailable = sync.OnceValue(func() bool {
	for _, bin := range []string{"pdftotext", "pdfinfo"} {
		if _, err := exec.LookPath(bin); err != nil {
			return false
		}
	}
	return true
})

// PDFTextBackend names the page text extractor ExtractPDF uses on this host:
// "pdftotext" when poppler is installed, "content-stream" otherwise.
func PDFTextBackend() string {
	if popplerAvailable() {
		return "pdftotext"
	}
	return "content-stream"
}

// ExtractPDF validates the document with pdfcpu and extracts it page by page.
// Pages are joined with "\n\n".
func ExtractPDF(content []byte) (string, error) {
	pageText := ContentStreamPageText
	if popplerAvailable() {
		pageText = PopplerPageText
	}
	return ExtractPDFPages(content, pageText)
}

// ExtractPDFPages is ExtractPDF with an explicit page text extractor.
func ExtractPDFPages(content []byte, pageText PageText) (string, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	cfg.Cmd = model.EXTRACTPAGES

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(content), cfg)
	if err != nil {
		return "", fmt.Errorf("api.ReadValidateAndOptimize: %w", err)
	}

	pages := make([]string, 0, ctx.PageCount)
	for n := 1; n <= ctx.PageCount; n++ {
		text, err := pageText(ctx, n)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", n, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return strings.Join(pages, "\n\n"), nil
}

// PopplerPageText splits the page into a single-page PDF with pdfcpu and runs
// it through docconv, which shells out to pdftotext.
func PopplerPageText(ctx *model.Context, pageNr int) (string, error) {
	page, err := api.ExtractPage(ctx, pageNr)
	if err != nil {
		return "", fmt.Errorf("api.ExtractPage: %w", err)
	}
	text, _, err := docconv.ConvertPDF(page)
	if err != nil {
		return "", fmt.Errorf("docconv.ConvertPDF: %w", err)
	}
	return text, nil
}

// ContentStreamPageText reads the text-showing operators of the page content
// stream. Strings are decoded as UTF-16BE when they carry a BOM and as Latin-1
// otherwise; font encodings and ToUnicode maps are not applied.
func ContentStreamPageText(ctx *model.Context, pageNr int) (string, error) {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return "", fmt.Errorf("pdfcpu.ExtractPageContent: %w", err)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return contentStreamText(content), nil
}
