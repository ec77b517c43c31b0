package models

// Obra carries the consolidated building/project identification merged
// from every stamp found across the input documents.
type Obra struct {
	Construtora    string      `json:"construtora"`
	Empreendimento string      `json:"empreendimento"`
	Endereco       string      `json:"endereco"`
	Tipologia      string      `json:"tipologia"`
	Pavimentos     []string    `json:"pavimentos"`
	Carimbo        ObraCarimbo `json:"carimbo"`
}

// ObraCarimbo is the drawing-control subset of the merged stamp.
type ObraCarimbo struct {
	Projeto string `json:"projeto"`
	Revisao string `json:"revisao"`
	Data    string `json:"data"`
	Escala  string `json:"escala"`
	Autor   string `json:"autor"`
	Arquivo string `json:"arquivo"`
}

// SalaTecnica is one technical-room mention found in page text.
type SalaTecnica struct {
	Nome        string   `json:"nome"`
	Localizacao string   `json:"localizacao"`
	Requisitos  []string `json:"requisitos"`
}

// MasterData is the canonical consolidated project inventory. It is
// built once by the consolidator and read-only afterward; it is the
// exact payload handed to the section-generation and document-writer
// layers. Fontes lists the source document filenames so downstream
// consumers do not need the raw extractions.
type MasterData struct {
	Obra          Obra          `json:"obra"`
	Servicos      []string      `json:"servicos"`
	Pavimentos    []string      `json:"pavimentos"`
	Itens         []RawItem     `json:"itens"`
	SalasTecnicas []SalaTecnica `json:"salas_tecnicas"`
	Normas        []string      `json:"normas"`
	NormasPadrao  []string      `json:"normas_padrao"`
	Fontes        []string      `json:"fontes"`
}
