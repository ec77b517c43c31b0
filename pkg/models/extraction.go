package models

// ExtractionMethod identifies how a page's text was obtained.
type ExtractionMethod string

const (
	MethodNative ExtractionMethod = "native" // PDF text layer
	MethodOCR    ExtractionMethod = "ocr"    // rendered + recognized
)

// PageType classifies an engineering drawing sheet by its content.
type PageType string

const (
	PagePlanta      PageType = "planta"
	PageLegenda     PageType = "legenda"
	PageCorte       PageType = "corte"
	PageDetalhe     PageType = "detalhe"
	PageObservacoes PageType = "observacoes"
	PageUnknown     PageType = "unknown"
)

// PageRecord holds the extraction result for a single PDF page.
// Page numbers are 1-based. The raster fallback may extend Text with
// recovered legend content; nothing else mutates a record.
type PageRecord struct {
	PageNumber int              `json:"page_number"`
	Method     ExtractionMethod `json:"extraction_method"`
	Text       string           `json:"text"`
	OCRTime    float64          `json:"ocr_time,omitempty"` // seconds
	FromCache  bool             `json:"from_cache,omitempty"`
	Type       PageType         `json:"type,omitempty"`
	Pavimento  string           `json:"pavimento,omitempty"`
	Keywords   []string         `json:"keywords,omitempty"`
}

// TableCell is one OCR'd cell of a detected table grid.
type TableCell struct {
	Row  int    `json:"row"`
	Col  int    `json:"col"`
	Text string `json:"text"`
}

// Table is a detected table with its cells organized in a row/col grid.
type Table struct {
	TableID string      `json:"table_id"`
	NumRows int         `json:"num_rows"`
	NumCols int         `json:"num_cols"`
	Cells   []TableCell `json:"cells"`
	Type    string      `json:"type"` // legenda, sumario, normas, generic
}

// ExtractionMetrics aggregates per-document extraction counters.
type ExtractionMetrics struct {
	TotalPages   int     `json:"total_pages"`
	NativePages  int     `json:"text_extracted_pages"`
	OCRPages     int     `json:"ocr_pages"`
	CacheHits    int     `json:"cache_hits"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	TotalOCRTime float64 `json:"total_ocr_time"` // seconds
}

// StampFields holds the nine title-block (carimbo) fields of a drawing
// sheet. Absent fields are empty strings, never omitted, so downstream
// formatting can rely on every key being present.
type StampFields struct {
	Construtora    string `json:"construtora"`
	Empreendimento string `json:"empreendimento"`
	Endereco       string `json:"endereco"`
	Projeto        string `json:"projeto"`
	Revisao        string `json:"revisao"`
	Data           string `json:"data"`
	Escala         string `json:"escala"`
	Autor          string `json:"autor"`
	Arquivo        string `json:"arquivo"`
}

// IsEmpty reports whether no stamp field was recognized at all.
func (s StampFields) IsEmpty() bool {
	return s == StampFields{}
}

// RawExtraction is the full extraction result for one input document.
// Created once per document by the hybrid extractor, enriched by the
// raster fallback, then immutable. Error is set only on synthetic
// records emitted when a worker fails or times out; such records carry
// empty collections.
type RawExtraction struct {
	Filename string            `json:"filename"`
	Pages    []PageRecord      `json:"pages"`
	Tables   []Table           `json:"tables"`
	Carimbo  StampFields       `json:"carimbo"`
	Metrics  ExtractionMetrics `json:"metrics"`
	Error    string            `json:"error,omitempty"`
}

// RawItem is an inventory record built while scanning page or table
// text. Tipo is required for the item to be considered complete;
// everything else is optional.
type RawItem struct {
	Tipo       string   `json:"tipo,omitempty"`
	Quantidade int      `json:"quantidade,omitempty"`
	AlturaM    float64  `json:"altura_m,omitempty"`
	MM         int      `json:"mm,omitempty"`
	Polegadas  string   `json:"polegadas,omitempty"`
	Cabos      []string `json:"cabos,omitempty"`
	Divisor    string   `json:"divisor,omitempty"`
	Pavimento  string   `json:"pavimento,omitempty"`
	Observacao string   `json:"observacao,omitempty"`
}
