package epub

import (
	"encoding/xml"
	"io"
	"strings"
)

// Relation markers carried by resources.
const (
	RelCover     = "cover"
	RelContents  = "contents"
	RelNCX       = "ncx"
	RelAlternate = "alternate"
)

// Media types of the two synthetic alternates.
const (
	MediaTypeEPUB    = "application/epub+zip"
	MediaTypePackage = packageMediaType
)

// OriginalName is the URL of the synthetic resource standing for the uploaded archive.
const OriginalName = "original.epub"

// Resource is one entry of the parsed resource list. It carries no manifest id.
type Resource struct {
	URL            string   `json:"url"`
	Rel            []string `json:"rel,omitempty"`
	EncodingFormat string   `json:"encodingFormat"`
}

// Has reports whether the resource carries the relation marker.
func (r Resource) Has(rel string) bool {
	for _, v := range r.Rel {
		if v == rel {
			return true
		}
	}
	return false
}

// Package is the parsed package document.
type Package struct {
	Path         string
	Title        string
	Language     string
	Identifier   string
	Version      string
	Authors      []string
	ReadingOrder []Resource

	// Resources holds every manifest item in declaration order followed by
	// the two synthetic alternates.
	Resources []Resource

	manifestLen int
}

// Manifest returns the resources declared by the package document, without
// the synthetic alternates.
func (p *Package) Manifest() []Resource {
	return p.Resources[:p.manifestLen]
}

// CoverResource returns the first resource marked as cover.
func (p *Package) CoverResource() (Resource, bool) {
	return p.firstWith(RelCover)
}

// Contents returns the navigation document, or the NCX when there is none.
func (p *Package) Contents() (Resource, bool) {
	if r, ok := p.firstWith(RelContents); ok {
		return r, true
	}
	return p.firstWith(RelNCX)
}

func (p *Package) firstWith(rel string) (Resource, bool) {
	for _, r := range p.Manifest() {
		if r.Has(rel) {
			return r, true
		}
	}
	return Resource{}, false
}

type opfPackage struct {
	XMLName          xml.Name
	Version          string      `xml:"version,attr"`
	UniqueIdentifier string      `xml:"unique-identifier,attr"`
	Metadata         opfMetadata `xml:"metadata"`
	Manifest         []opfItem   `xml:"manifest>item"`
	Spine            *opfSpine   `xml:"spine"`
}

type opfMetadata struct {
	Titles    []string  `xml:"title"`
	Languages []string  `xml:"language"`
	Creators  []string  `xml:"creator"`
	Metas     []opfMeta `xml:"meta"`
}

type opfMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfSpine struct {
	Toc      string       `xml:"toc,attr"`
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// manifestItem pairs a resolved resource with the id used to link it from
// the spine and metadata. The id never leaves this file.
type manifestItem struct {
	id  string
	res Resource
}

// ParsePackage parses the package document located at packagePath.
// Parameters:
//   - text: package document, already decoded to UTF-8.
//   - packagePath: archive path of the package document; hrefs are resolved against its directory.
//
// Returns:
//   - *Package: metadata, resource list and reading order.
//   - error: ErrMalformedPackageDocument or MissingRequiredElementError.
func ParsePackage(text, packagePath string) (*Package, error) {
	var doc opfPackage
	if err := newDecoder(text).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, &MissingRequiredElementError{Element: "package"}
		}
		return nil, malformed(packagePath, err)
	}
	if doc.XMLName.Local != "package" {
		return nil, &MissingRequiredElementError{Element: "package"}
	}
	if doc.Spine == nil {
		return nil, &MissingRequiredElementError{Element: "spine"}
	}

	identifier, err := textByID(text, doc.UniqueIdentifier)
	if err != nil {
		return nil, malformed(packagePath, err)
	}

	pkg := &Package{
		Path:       packagePath,
		Title:      first(doc.Metadata.Titles),
		Language:   first(doc.Metadata.Languages),
		Identifier: identifier,
		Version:    strings.TrimSpace(doc.Version),
	}

	items := buildManifest(doc.Manifest, doc.Spine.Toc, packagePath)
	applyCoverFallback(items, doc.Metadata.Metas)
	pkg.ReadingOrder = buildReadingOrder(items, doc.Spine.ItemRefs)

	for _, c := range doc.Metadata.Creators {
		if name := strings.TrimSpace(c); name != "" {
			pkg.Authors = append(pkg.Authors, name)
		}
	}

	pkg.Resources = make([]Resource, 0, len(items)+2)
	for _, it := range items {
		pkg.Resources = append(pkg.Resources, it.res)
	}
	pkg.manifestLen = len(items)
	pkg.Resources = append(pkg.Resources,
		Resource{URL: OriginalName, Rel: []string{RelAlternate}, EncodingFormat: MediaTypeEPUB},
		Resource{URL: packagePath, Rel: []string{RelAlternate}, EncodingFormat: MediaTypePackage},
	)

	return pkg, nil
}

func buildManifest(decl []opfItem, tocID, packagePath string) []manifestItem {
	items := make([]manifestItem, 0, len(decl))
	for _, it := range decl {
		res := Resource{
			URL:            ResolvePath(packagePath, strings.TrimSpace(it.Href)),
			EncodingFormat: strings.TrimSpace(it.MediaType),
		}
		if strings.Contains(it.Properties, "cover-image") {
			res.Rel = append(res.Rel, RelCover)
		}
		if strings.Contains(it.Properties, "nav") {
			res.Rel = append(res.Rel, RelContents)
		}
		if tocID != "" && it.ID == tocID {
			res.Rel = append(res.Rel, RelNCX)
		}
		items = append(items, manifestItem{id: it.ID, res: res})
	}
	return items
}

// applyCoverFallback honours the legacy <meta name="cover" content="id"/>
// convention when no item declares the cover-image property.
func applyCoverFallback(items []manifestItem, metas []opfMeta) {
	for _, it := range items {
		if it.res.Has(RelCover) {
			return
		}
	}
	for _, m := range metas {
		if m.Name != "cover" {
			continue
		}
		if i := indexByID(items, strings.TrimSpace(m.Content)); i >= 0 {
			items[i].res.Rel = append(items[i].res.Rel, RelCover)
			return
		}
	}
}

func buildReadingOrder(items []manifestItem, refs []opfItemRef) []Resource {
	order := make([]Resource, 0, len(refs))
	for _, ref := range refs {
		if strings.EqualFold(strings.TrimSpace(ref.Linear), "no") {
			continue
		}
		// Dangling idrefs are dropped.
		if i := indexByID(items, ref.IDRef); i >= 0 {
			order = append(order, items[i].res)
		}
	}
	return order
}

func indexByID(items []manifestItem, id string) int {
	if id == "" {
		return -1
	}
	for i, it := range items {
		if it.id == id {
			return i
		}
	}
	return -1
}

// textByID returns the character data of the first element whose id
// attribute equals id, wherever it sits in the document.
func textByID(text, id string) (string, error) {
	if id == "" {
		return "", nil
	}

	d := newDecoder(text)
	depth := 0
	var b strings.Builder
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return "", nil
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth > 0 {
				depth++
				continue
			}
			for _, a := range t.Attr {
				if a.Name.Local == "id" && a.Value == id {
					depth = 1
					break
				}
			}
		case xml.EndElement:
			if depth > 0 {
				depth--
				if depth == 0 {
					return strings.TrimSpace(b.String()), nil
				}
			}
		case xml.CharData:
			if depth > 0 {
				b.Write(t)
			}
		}
	}
}

func first(values []string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
