// Package parser turns a Form 4 submission (the EDGAR full-text .txt that
// embeds an ownershipDocument XML fragment) into transaction records.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/JakeFAU/form4-crawler/internal/filing"
	"github.com/JakeFAU/form4-crawler/internal/xmlpath"
)

var (
	// ErrNoDocument means the submission carries no ownershipDocument fragment.
	ErrNoDocument = errors.New("no ownership document in submission")
	// ErrStructure means a node the document must contain is absent.
	ErrStructure = errors.New("missing document structure")

	fragmentPattern  = regexp.MustCompile(`(?s)<\?xml version="1\.0"\?>.*</ownershipDocument>`)
	accessionPattern = regexp.MustCompile(`ACCESSION NUMBER:\s*([0-9-]+)`)
)

const rootTag = "ownershipDocument"

// Source describes where a document came from.
type Source struct {
	// URL is the retrieval location recorded on every transaction.
	URL string
	// Filed is the index date, used when the document has no periodOfReport.
	Filed filing.Date
}

// header holds the document-level fields shared by every transaction.
type header struct {
	formDate      filing.Date
	formType      string
	company       string
	symbol        string
	companyCIK    string
	owner         string
	ownerCIK      string
	relationships []filing.Relationship
	accessNo      string
}

// Parse extracts every non-derivative transaction from raw. Missing structural
// nodes fail the whole document; unparsable numbers default to zero.
func Parse(raw []byte, src Source) ([]filing.Transaction, error) {
	fragment := fragmentPattern.Find(raw)
	if fragment == nil {
		return nil, ErrNoDocument
	}
	doc, err := xmlquery.Parse(bytes.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse ownership xml: %w", err)
	}
	root, ok := xmlpath.Lookup(doc, rootTag)
	if !ok {
		return nil, structureErr(rootTag)
	}

	hdr, err := readHeader(root, raw, src)
	if err != nil {
		return nil, err
	}

	table, ok := xmlpath.Lookup(root, "nonDerivativeTable")
	if !ok {
		return nil, structureErr("nonDerivativeTable")
	}
	nodes := xmlpath.Children(table, "nonDerivativeTransaction")
	if len(nodes) == 0 {
		return nil, structureErr("nonDerivativeTable", "nonDerivativeTransaction")
	}

	txs := make([]filing.Transaction, 0, len(nodes))
	for i, node := range nodes {
		tx, err := readTransaction(node, hdr, src.URL)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func readHeader(root *xmlquery.Node, raw []byte, src Source) (header, error) {
	if _, ok := xmlpath.Lookup(root, "issuer"); !ok {
		return header{}, structureErr("issuer")
	}
	if _, ok := xmlpath.Lookup(root, "reportingOwner"); !ok {
		return header{}, structureErr("reportingOwner")
	}
	companyCIK, ok := xmlpath.LookupText(root, "issuer", "issuerCik")
	if !ok || companyCIK == "" {
		return header{}, structureErr("issuer", "issuerCik")
	}
	ownerCIK, ok := xmlpath.LookupText(root, "reportingOwner", "reportingOwnerId", "rptOwnerCik")
	if !ok || ownerCIK == "" {
		return header{}, structureErr("reportingOwner", "reportingOwnerId", "rptOwnerCik")
	}

	hdr := header{
		formDate:      src.Filed,
		formType:      upperText(root, "documentType"),
		company:       upperText(root, "issuer", "issuerName"),
		symbol:        upperText(root, "issuer", "issuerTradingSymbol"),
		companyCIK:    strings.ToUpper(companyCIK),
		owner:         upperText(root, "reportingOwner", "reportingOwnerId", "rptOwnerName"),
		ownerCIK:      strings.ToUpper(ownerCIK),
		relationships: readRelationships(root),
		accessNo:      accessionNumber(raw, src.URL),
	}
	if period, ok := xmlpath.LookupText(root, "periodOfReport"); ok {
		if d, err := parseDay(period); err == nil {
			hdr.formDate = d
		}
	}
	return hdr, nil
}

func readRelationships(root *xmlquery.Node) []filing.Relationship {
	flags := []struct {
		tag string
		rel filing.Relationship
	}{
		{"isDirector", filing.RelationshipDirector},
		{"isOfficer", filing.RelationshipOfficer},
		{"isTenPercentOwner", filing.RelationshipTenPercent},
		{"isOther", filing.RelationshipOther},
	}
	rels := []filing.Relationship{}
	for _, f := range flags {
		text, ok := xmlpath.LookupText(root, "reportingOwner", "reportingOwnerRelationship", f.tag)
		if !ok {
			continue
		}
		switch strings.ToLower(text) {
		case "1", "true":
			rels = append(rels, f.rel)
		}
	}
	return rels
}

func readTransaction(node *xmlquery.Node, hdr header, url string) (filing.Transaction, error) {
	dateText, ok := xmlpath.LookupText(node, "transactionDate")
	if !ok {
		return filing.Transaction{}, structureErr("transactionDate")
	}
	transDate, err := parseDay(dateText)
	if err != nil {
		return filing.Transaction{}, fmt.Errorf("%w: transactionDate %q", ErrStructure, dateText)
	}

	rels := make([]filing.Relationship, len(hdr.relationships))
	copy(rels, hdr.relationships)
	shares := number(node, "transactionAmounts", "transactionShares")
	price := number(node, "transactionAmounts", "transactionPricePerShare")
	return filing.Transaction{
		FormDate:      hdr.formDate,
		TransDate:     transDate,
		Company:       hdr.company,
		Symbol:        hdr.symbol,
		CompanyCIK:    hdr.companyCIK,
		Owner:         hdr.owner,
		OwnerCIK:      hdr.ownerCIK,
		Relationships: rels,
		SharesTraded:  shares,
		AvgPrice:      price,
		Amount:        shares * price,
		SharesOwned:   number(node, "postTransactionAmounts", "sharesOwnedFollowingTransaction"),
		TransCode:     upperText(node, "transactionCoding", "transactionCode"),
		OwnershipCode: upperText(node, "ownershipNature", "directOrIndirectOwnership"),
		ActionCode:    upperText(node, "transactionAmounts", "transactionAcquiredDisposedCode"),
		FormType:      hdr.formType,
		FormURL:       url,
		AccessNo:      hdr.accessNo,
	}, nil
}

func upperText(node *xmlquery.Node, p ...string) string {
	text, _ := xmlpath.LookupText(node, p...)
	return strings.ToUpper(text)
}

// number returns zero for absent, malformed or non-finite values.
func number(node *xmlquery.Node, p ...string) float64 {
	text, ok := xmlpath.LookupText(node, p...)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// parseDay accepts YYYY-MM-DD with an optional zone suffix (2023-01-03-05:00).
func parseDay(text string) (filing.Date, error) {
	if len(text) > 10 {
		text = text[:10]
	}
	return filing.ParseDate(text)
}

func accessionNumber(raw []byte, url string) string {
	if m := accessionPattern.FindSubmatch(raw); m != nil {
		return string(m[1])
	}
	return strings.TrimSuffix(path.Base(url), path.Ext(url))
}

func structureErr(p ...string) error {
	return fmt.Errorf("%w: %s", ErrStructure, strings.Join(p, "/"))
}
