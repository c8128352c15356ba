package content

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const kanjiSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["kanjiChar", "meanings"],
    "properties": {
      "id": {"type": "integer"},
      "kanjiChar": {"type": "string", "minLength": 1},
      "onyomi": {"type": "array", "items": {"type": "string"}},
      "kunyomi": {"type": "array", "items": {"type": "string"}},
      "meanings": {"type": "array", "items": {"type": "string"}, "minItems": 1}
    }
  }
}`

const vocabSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["kana", "waller_definition"],
    "properties": {
      "jmdict_seq": {"type": ["string", "integer"]},
      "kana": {"type": "string", "minLength": 1},
      "kanji": {"type": ["string", "null"]},
      "waller_definition": {"type": "string"}
    }
  }
}`

var (
	kanjiSchemaOnce = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewStringLoader(kanjiSchema))
	})
	vocabSchemaOnce = sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return gojsonschema.NewSchema(gojsonschema.NewStringLoader(vocabSchema))
	})

	definitionSep = regexp.MustCompile(`[;,]`)
)

func validate(schemaFn func() (*gojsonschema.Schema, error), data []byte) error {
	schema, err := schemaFn()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(msgs, "; "))
	}
	return nil
}

// DecodeKanji parses one level of raw kanji records.
func DecodeKanji(data []byte) ([]Kanji, error) {
	if err := validate(kanjiSchemaOnce, data); err != nil {
		return nil, err
	}
	var items []Kanji
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return items, nil
}

type rawWord struct {
	Kana             string `json:"kana"`
	Kanji            string `json:"kanji"`
	WallerDefinition string `json:"waller_definition"`
}

// DecodeVocabulary parses one level of raw vocabulary records. The headword
// is the kanji spelling when present, otherwise the kana; the definition is
// split on ';' and ',' into meanings.
func DecodeVocabulary(data []byte) ([]Word, error) {
	if err := validate(vocabSchemaOnce, data); err != nil {
		return nil, err
	}
	var raw []rawWord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	words := make([]Word, 0, len(raw))
	for _, r := range raw {
		word := strings.TrimSpace(r.Kanji)
		if word == "" {
			word = r.Kana
		}
		var meanings []string
		for _, piece := range definitionSep.Split(r.WallerDefinition, -1) {
			if piece = strings.TrimSpace(piece); piece != "" {
				meanings = append(meanings, piece)
			}
		}
		words = append(words, Word{
			Word:     word,
			Reading:  strings.TrimSpace(r.Kana),
			Meanings: meanings,
		})
	}
	return words, nil
}
