package locator

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/locator-cli/internal/config"
	"github.com/sells-group/locator-cli/internal/model"
)

// Parser holds the page handlers for each level of the walk. Handlers only
// read the document and the visit; they never fetch or resolve anything.
type Parser struct {
	sel       config.SelectorsConfig
	extractor Extractor
}

// NewParser creates a parser using the given selectors and extractor.
func NewParser(sel config.SelectorsConfig, ex Extractor) *Parser {
	return &Parser{sel: sel, extractor: ex}
}

// Parse routes the page to the handler for v.Level.
func (p *Parser) Parse(v model.Visit, doc *goquery.Document) ([]model.Record, []model.Visit) {
	switch v.Level {
	case model.LevelStates:
		return nil, p.States(v, doc)
	case model.LevelCounties:
		return nil, p.Counties(v, doc)
	case model.LevelLocations:
		return p.Locations(v, doc), nil
	default:
		return nil, nil
	}
}

// States lists one county-level visit per state link on the root page.
func (p *Parser) States(v model.Visit, doc *goquery.Document) []model.Visit {
	names := trimAll(Texts(doc.Selection, p.sel.StateNames))
	links := Links(doc.Selection, p.sel.StateLinks, doc.Url)

	n := min(len(names), len(links))
	out := make([]model.Visit, 0, n)
	for i := range n {
		child := v.Child(links[i])
		child.State = names[i]
		out = append(out, child)
	}
	return out
}

// Counties lists one location-level visit per county link on a state page.
// Population is left for the walker to attach.
func (p *Parser) Counties(v model.Visit, doc *goquery.Document) []model.Visit {
	names := trimAll(Texts(doc.Selection, p.sel.CountyNames))
	links := Links(doc.Selection, p.sel.CountyLinks, doc.Url)

	n := min(len(names), len(links))
	out := make([]model.Visit, 0, n)
	for i := range n {
		child := v.Child(links[i])
		child.County = names[i]
		out = append(out, child)
	}
	return out
}

// Locations turns a county page into records carrying the visit's state,
// county and population.
func (p *Parser) Locations(v model.Visit, doc *goquery.Document) []model.Record {
	ex := p.extractor.Extract(doc.Selection)
	out := make([]model.Record, 0, len(ex.Locations))
	for _, loc := range ex.Locations {
		out = append(out, model.Record{
			State:        v.State,
			County:       v.County,
			Population:   v.Population,
			CenterName:   loc.Name,
			Address:      loc.Address,
			Contact:      loc.Contact,
			AccessPoints: ex.NameCount,
		})
	}
	return out
}
