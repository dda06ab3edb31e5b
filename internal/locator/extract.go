package locator

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/locator-cli/internal/config"
	"github.com/sells-group/locator-cli/internal/model"
)

// Fragments per location in the flat address sequence: two street lines
// followed by up to three "inside" lines.
const (
	addressWindow = 5
	streetParts   = 2
	insideSep     = " inside: "
)

// Address join modes. Raw concatenates fragments exactly as they appear in
// the markup; spaced trims them, drops blanks and separates with a space.
const (
	AddressJoinRaw    = "raw"
	AddressJoinSpaced = "spaced"
)

// Location is one extracted center before it is joined with its county.
type Location struct {
	Name    string
	Address string
	Contact string
}

// Extraction is the result of reading one county page.
type Extraction struct {
	Locations []Location
	// NameCount is the number of location names found, reported as the
	// county's access point count.
	NameCount int
}

// Extractor reads the locations listed on a county page. Implementations
// are pure functions of the document.
type Extractor interface {
	Extract(doc *goquery.Selection) Extraction
}

// NewExtractor builds the extractor named by cfg.ExtractMode.
func NewExtractor(cfg config.CrawlConfig) Extractor {
	if cfg.ExtractMode == "block" {
		return BlockExtractor{
			Block:        cfg.Selectors.Block,
			Names:        cfg.Selectors.LocationNames,
			AddressParts: cfg.Selectors.AddressParts,
			Phones:       cfg.Selectors.Phones,
			AddressJoin:  cfg.AddressJoin,
		}
	}
	return PositionalExtractor{
		Names:        cfg.Selectors.LocationNames,
		AddressParts: cfg.Selectors.AddressParts,
		Phones:       cfg.Selectors.Phones,
		Stride:       cfg.NameStride,
		AddressJoin:  cfg.AddressJoin,
	}
}

// PositionalExtractor pairs names, addresses and phones by their position in
// three independent flat sequences. It assumes every location contributes
// the same number of nodes to each sequence; drift misaligns later records.
type PositionalExtractor struct {
	Names        string
	AddressParts string
	Phones       string
	Stride       int
	AddressJoin  string
}

// Extract implements Extractor.
func (e PositionalExtractor) Extract(doc *goquery.Selection) Extraction {
	names := trimAll(EveryNth(Texts(doc, e.Names), e.Stride))
	addresses := BuildAddresses(Texts(doc, e.AddressParts), e.AddressJoin)
	contacts := PadContacts(trimAll(Texts(doc, e.Phones)), len(names))

	n := min(len(names), len(addresses), len(contacts))
	locs := make([]Location, 0, n)
	for i := range n {
		locs = append(locs, Location{
			Name:    names[i],
			Address: addresses[i],
			Contact: contacts[i],
		})
	}
	return Extraction{Locations: locs, NameCount: len(names)}
}

// BlockExtractor reads each location from its own container element, so a
// missing field only affects that location.
type BlockExtractor struct {
	Block        string
	Names        string
	AddressParts string
	Phones       string
	AddressJoin  string
}

// Extract implements Extractor. Blocks without a name are skipped.
func (e BlockExtractor) Extract(doc *goquery.Selection) Extraction {
	var locs []Location
	doc.Find(e.Block).Each(func(_ int, b *goquery.Selection) {
		name := FirstText(b, e.Names)
		if name == "" {
			return
		}
		addr := ""
		if parts := BuildAddresses(Texts(b, e.AddressParts), e.AddressJoin); len(parts) > 0 {
			addr = parts[0]
		}
		contact := FirstText(b, e.Phones)
		if contact == "" {
			contact = model.ContactPlaceholder
		}
		locs = append(locs, Location{Name: name, Address: addr, Contact: contact})
	})
	return Extraction{Locations: locs, NameCount: len(locs)}
}

// EveryNth returns items 0, n, 2n, ... A stride below 1 keeps every item.
func EveryNth(items []string, n int) []string {
	if n <= 1 {
		return items
	}
	out := make([]string, 0, (len(items)+n-1)/n)
	for i := 0; i < len(items); i += n {
		out = append(out, items[i])
	}
	return out
}

// BuildAddresses turns the flat fragment sequence into one address per
// window of five: "<street> inside: <inside>". A short final window still
// yields an address. Any mode other than spaced joins raw.
func BuildAddresses(fragments []string, mode string) []string {
	var out []string
	for i := 0; i < len(fragments); i += addressWindow {
		end := min(i+addressWindow, len(fragments))
		mid := min(i+streetParts, end)
		out = append(out, joinFragments(fragments[i:mid], mode)+insideSep+joinFragments(fragments[mid:end], mode))
	}
	return out
}

func joinFragments(parts []string, mode string) string {
	if mode != AddressJoinSpaced {
		return strings.Join(parts, "")
	}
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// PadContacts appends the placeholder until contacts has n entries. Longer
// lists are returned unchanged.
func PadContacts(contacts []string, n int) []string {
	for len(contacts) < n {
		contacts = append(contacts, model.ContactPlaceholder)
	}
	return contacts
}
