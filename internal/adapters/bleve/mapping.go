package bleve

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

func textField(analyzer string) *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = analyzer
	fm.Store = true
	return fm
}

// buildIndexMapping maps subject and content as full text and the
// remaining email fields as exact keywords. The date is kept verbatim.
func buildIndexMapping() mapping.IndexMapping {
	email := bleve.NewDocumentMapping()
	email.AddFieldMappingsAt("subject", textField(standard.Name))
	email.AddFieldMappingsAt("content", textField(standard.Name))
	email.AddFieldMappingsAt("sender", textField(keyword.Name))
	email.AddFieldMappingsAt("folder", textField(keyword.Name))
	email.AddFieldMappingsAt("account", textField(keyword.Name))
	// Kept as the header text; date-typed range queries need the Elasticsearch backend
	email.AddFieldMappingsAt("date", textField(keyword.Name))
	email.AddFieldMappingsAt("spam", bleve.NewBooleanFieldMapping())
	email.AddFieldMappingsAt("spam_score", bleve.NewNumericFieldMapping())

	m := bleve.NewIndexMapping()
	m.DefaultMapping = email
	m.DefaultAnalyzer = standard.Name
	return m
}
