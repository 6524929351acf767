package metadata

import (
	"encoding/xml"
	"strings"
)

// XMP basic schema; xmp: and the older xap: prefix both bind to it.
const xmpNamespace = "http://ns.adobe.com/xap/1.0/"

const rdfNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

type xmpDescription struct {
	Attrs []xml.Attr      `xml:",any,attr"`
	Props []xmpDescriptor `xml:",any"`
}

type xmpDescriptor struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// isXMPBasic accepts the schema URI, or a bare prefix when the packet never
// declared it.
func isXMPBasic(space string) bool {
	return space == xmpNamespace || space == "xmp" || space == "xap"
}

// ParseXMP decodes the XMP basic properties of every rdf:Description in an
// XMP packet, written either as attributes or as simple child elements. Keys
// come back as Xmp.xmp.<Name>. A malformed packet yields what was decoded
// before the error.
func ParseXMP(packet string) map[string]string {
	out := map[string]string{}
	dec := xml.NewDecoder(strings.NewReader(packet))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Description" {
			continue
		}
		if start.Name.Space != rdfNamespace && start.Name.Space != "rdf" {
			continue
		}
		var d xmpDescription
		if err := dec.DecodeElement(&d, &start); err != nil {
			return out
		}
		for _, a := range d.Attrs {
			if isXMPBasic(a.Name.Space) {
				out["Xmp.xmp."+a.Name.Local] = strings.TrimSpace(a.Value)
			}
		}
		for _, p := range d.Props {
			v := strings.TrimSpace(p.Value)
			if isXMPBasic(p.XMLName.Space) && v != "" {
				out["Xmp.xmp."+p.XMLName.Local] = v
			}
		}
	}
}
